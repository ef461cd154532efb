// Package codec describes how application values serialize to and
// parse from the single SQL cell value SQLite stores them as (§2 C2).
package codec

import (
	"encoding/json"
	"time"

	"github.com/dosco-labs/relq/internal/rerr"
)

// Primitive is the value shape a SQL cell can hold: string, number,
// bool, or nil. The driver surface (§6) speaks only in these.
type Primitive any

// Codec describes one application type's mapping to a SQL cell.
// Name is the SQLite-facing type tag used by DDL emission (C3) and by
// the shaper (C7) to decide how to re-hydrate a cell.
type Codec struct {
	Name     string
	Numeric  bool
	Nullable bool

	serialize func(v any) (Primitive, error)
	parse     func(p Primitive) (any, error)
}

// Serialize converts an application value to a SQL primitive.
func (c Codec) Serialize(v any) (Primitive, error) {
	if v == nil {
		if !c.Nullable {
			return nil, rerr.New(rerr.CodecError, "codec %q is not nullable", c.Name)
		}
		return nil, nil
	}
	return c.serialize(v)
}

// Parse converts a SQL primitive back to an application value.
func (c Codec) Parse(p Primitive) (any, error) {
	if p == nil {
		if !c.Nullable {
			return nil, rerr.New(rerr.CodecError, "codec %q received NULL", c.Name)
		}
		return nil, nil
	}
	return c.parse(p)
}

// AsNullable returns a copy of c that accepts and produces the null marker.
func (c Codec) AsNullable() Codec {
	c.Nullable = true
	return c
}

// Text stores a Go string as SQL TEXT.
var Text = Codec{
	Name: "text",
	serialize: func(v any) (Primitive, error) {
		s, ok := v.(string)
		if !ok {
			return nil, rerr.New(rerr.CodecError, "text codec expects a string, got %T", v)
		}
		return s, nil
	},
	parse: func(p Primitive) (any, error) {
		s, ok := p.(string)
		if !ok {
			return nil, rerr.New(rerr.CodecError, "text codec expects a string cell, got %T", p)
		}
		return s, nil
	},
}

// Integer stores a Go int64 as SQL INTEGER.
var Integer = Codec{
	Name:    "integer",
	Numeric: true,
	serialize: func(v any) (Primitive, error) {
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		default:
			return nil, rerr.New(rerr.CodecError, "integer codec expects an int, got %T", v)
		}
	},
	parse: func(p Primitive) (any, error) {
		switch n := p.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case float64:
			return int64(n), nil
		default:
			return nil, rerr.New(rerr.CodecError, "integer codec expects a numeric cell, got %T", p)
		}
	},
}

// Real stores a Go float64 as SQL REAL.
var Real = Codec{
	Name:    "real",
	Numeric: true,
	serialize: func(v any) (Primitive, error) {
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		default:
			return nil, rerr.New(rerr.CodecError, "real codec expects a float, got %T", v)
		}
	},
	parse: func(p Primitive) (any, error) {
		switch n := p.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		default:
			return nil, rerr.New(rerr.CodecError, "real codec expects a numeric cell, got %T", p)
		}
	},
}

// Boolean stores a Go bool as SQL INTEGER 0/1.
var Boolean = Codec{
	Name: "boolean",
	serialize: func(v any) (Primitive, error) {
		b, ok := v.(bool)
		if !ok {
			return nil, rerr.New(rerr.CodecError, "boolean codec expects a bool, got %T", v)
		}
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	},
	parse: func(p Primitive) (any, error) {
		switch n := p.(type) {
		case int64:
			return parseBooleanInt(n)
		case int:
			return parseBooleanInt(int64(n))
		case float64:
			return parseBooleanInt(int64(n))
		default:
			return nil, rerr.New(rerr.CodecError, "boolean codec expects 0 or 1, got %T", p)
		}
	},
}

func parseBooleanInt(n int64) (any, error) {
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return nil, rerr.New(rerr.CodecError, "boolean codec expects 0 or 1, got %d", n)
	}
}

// Date stores a Go time.Time as ISO-8601 UTC SQL TEXT.
var Date = Codec{
	Name: "date",
	serialize: func(v any) (Primitive, error) {
		t, ok := v.(time.Time)
		if !ok {
			return nil, rerr.New(rerr.CodecError, "date codec expects a time.Time, got %T", v)
		}
		return t.UTC().Format(time.RFC3339), nil
	},
	parse: func(p Primitive) (any, error) {
		s, ok := p.(string)
		if !ok {
			return nil, rerr.New(rerr.CodecError, "date codec expects a text cell, got %T", p)
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, rerr.New(rerr.CodecError, "date codec: strict ISO-8601 parse failed: %v", err)
		}
		return t, nil
	},
}

// JSON stores any JSON-marshalable Go value as canonical JSON SQL TEXT,
// and tolerantly parses what SQLite's json_* functions emit back
// (object, array, string, number, boolean, or null).
var JSON = Codec{
	Name: "json",
	serialize: func(v any) (Primitive, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, rerr.New(rerr.CodecError, "json codec: marshal failed: %v", err)
		}
		return string(b), nil
	},
	parse: func(p Primitive) (any, error) {
		s, ok := p.(string)
		if !ok {
			return nil, rerr.New(rerr.CodecError, "json codec expects a text cell, got %T", p)
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, rerr.New(rerr.CodecError, "json codec: unparseable payload: %v", err)
		}
		return out, nil
	},
}
