// Package shape is the result shaper (§2 C7): it re-hydrates the flat
// rows a driver returns into nested Go values by walking a
// plan.Plan in lock-step with each row, decoding json_object/
// json_group_array cells (§4.7) instead of letting a join multiply
// rows, and applying the terminal cardinality rule (§4.5).
package shape

import (
	"encoding/json"

	"github.com/mitchellh/mapstructure"

	"github.com/dosco-labs/relq/internal/ir"
	"github.com/dosco-labs/relq/internal/plan"
	"github.com/dosco-labs/relq/internal/rerr"
)

// Row is one flat record as a driver hands it back: result-column name
// to a codec.Primitive cell value.
type Row = map[string]any

// Shape walks p against rows and returns the cardinality-appropriate
// result: a []any for ir.CardAll, a single value for ir.CardOne/
// ir.CardFirst, or nil/a single value for the Maybe* cardinalities.
func Shape(p plan.Plan, rows []Row, card ir.Cardinality) (any, error) {
	values := make([]any, 0, len(rows))
	for _, row := range rows {
		v, err := shapeRow(p, row)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return applyCardinality(values, card)
}

func applyCardinality(values []any, card ir.Cardinality) (any, error) {
	switch card {
	case ir.CardAll:
		return values, nil
	case ir.CardOne:
		if len(values) == 0 {
			return nil, rerr.New(rerr.EmptyResult, "query requires exactly one row, got none")
		}
		if len(values) > 1 {
			return nil, rerr.New(rerr.TooManyResults, "query requires exactly one row, got %d", len(values))
		}
		return values[0], nil
	case ir.CardMaybeOne:
		if len(values) == 0 {
			return nil, nil
		}
		if len(values) > 1 {
			return nil, rerr.New(rerr.TooManyResults, "query requires at most one row, got %d", len(values))
		}
		return values[0], nil
	case ir.CardFirst:
		if len(values) == 0 {
			return nil, rerr.New(rerr.EmptyResult, "query requires at least one row, got none")
		}
		return values[0], nil
	case ir.CardMaybeFirst:
		if len(values) == 0 {
			return nil, nil
		}
		return values[0], nil
	default:
		return nil, rerr.New(rerr.SchemaError, "unknown cardinality %d", card)
	}
}

// shapeRow applies p to a single flat row. A top-level plan is always
// a NestedObject (renderSelection never emits anything else at the
// query's own top level), so this walks straight into its fields.
func shapeRow(p plan.Plan, row Row) (any, error) {
	return shapeNode(p, row)
}

func shapeNode(p plan.Plan, row Row) (any, error) {
	switch p.Kind {
	case plan.Scalar:
		cell, ok := row[p.ResultColumnName]
		if !ok {
			return nil, rerr.New(rerr.DriverError, "result set missing column %q", p.ResultColumnName)
		}
		if cell == nil {
			return nil, nil
		}
		if p.Codec.Name == "" {
			return cell, nil
		}
		v, err := p.Codec.Parse(cell)
		if err != nil {
			if re, ok := err.(*rerr.Error); ok {
				return nil, re.AtColumn(p.ResultColumnName)
			}
			return nil, err
		}
		return v, nil

	case plan.NestedObject:
		out := make(map[string]any, len(p.Fields))
		for _, f := range p.Fields {
			v, err := shapeNode(f.Plan, row)
			if err != nil {
				return nil, err
			}
			out[f.Key] = v
		}
		return out, nil

	case plan.NestedArray:
		raw, ok := row[p.ResultColumnName]
		if !ok {
			return nil, rerr.New(rerr.DriverError, "result set missing column %q", p.ResultColumnName)
		}
		return shapeJSONArray(*p.Inner, raw)

	case plan.LeftJoinShape:
		v, err := shapeNode(*p.Inner, row)
		if err != nil {
			return nil, err
		}
		if allPrimaryColumnsNull(v) {
			return nil, nil
		}
		return v, nil

	default:
		return nil, rerr.New(rerr.SchemaError, "unknown plan kind %d", p.Kind)
	}
}

// shapeJSONArray decodes a json_group_array(json_object(...)) cell,
// which arrives as a JSON-text primitive (or already-decoded []any for
// drivers that pre-parse JSON columns), into a []any of shaped
// elements matching elemPlan.
func shapeJSONArray(elemPlan plan.Plan, raw any) (any, error) {
	var items []any
	switch v := raw.(type) {
	case nil:
		return []any{}, nil
	case string:
		if err := json.Unmarshal([]byte(v), &items); err != nil {
			return nil, rerr.New(rerr.CodecError, "nested array column: unparseable JSON: %v", err)
		}
	case []byte:
		if err := json.Unmarshal(v, &items); err != nil {
			return nil, rerr.New(rerr.CodecError, "nested array column: unparseable JSON: %v", err)
		}
	case []any:
		items = v
	default:
		return nil, rerr.New(rerr.CodecError, "nested array column: unexpected cell type %T", raw)
	}

	out := make([]any, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, rerr.New(rerr.CodecError, "nested array element is not an object, got %T", item)
		}
		shaped, err := shapeJSONObjectPlan(elemPlan, obj)
		if err != nil {
			return nil, err
		}
		out = append(out, shaped)
	}
	return out, nil
}

// shapeJSONObjectPlan applies a NestedObject/LeftJoinShape plan to an
// already-decoded JSON object (one element of a json_group_array),
// rather than to a flat SQL row.
func shapeJSONObjectPlan(p plan.Plan, obj map[string]any) (any, error) {
	switch p.Kind {
	case plan.Scalar:
		cell, ok := obj[p.ResultColumnName]
		if !ok {
			return nil, rerr.New(rerr.DriverError, "nested object missing field %q", p.ResultColumnName)
		}
		if cell == nil || p.Codec.Name == "" {
			return cell, nil
		}
		return p.Codec.Parse(cell)

	case plan.NestedObject:
		out := make(map[string]any, len(p.Fields))
		for _, f := range p.Fields {
			v, err := shapeJSONObjectPlan(f.Plan, obj)
			if err != nil {
				return nil, err
			}
			out[f.Key] = v
		}
		return out, nil

	case plan.NestedArray:
		raw, ok := obj[p.ResultColumnName]
		if !ok {
			return nil, rerr.New(rerr.DriverError, "nested object missing array field %q", p.ResultColumnName)
		}
		return shapeJSONArray(*p.Inner, raw)

	case plan.LeftJoinShape:
		v, err := shapeJSONObjectPlan(*p.Inner, obj)
		if err != nil {
			return nil, err
		}
		if allPrimaryColumnsNull(v) {
			return nil, nil
		}
		return v, nil

	default:
		return nil, rerr.New(rerr.SchemaError, "unknown plan kind %d", p.Kind)
	}
}

// allPrimaryColumnsNull implements the left-join null-shaping rule
// (§4.7): a LeftJoinShape subtree becomes null when every cell of its
// shaped object is null (there was no matching joined row). plan.Plan
// carries no primary-key marker, so primary and non-primary cells are
// checked alike.
func allPrimaryColumnsNull(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return v == nil
	}
	if len(obj) == 0 {
		return false
	}
	for _, cell := range obj {
		if nested, isMap := cell.(map[string]any); isMap {
			if !allPrimaryColumnsNull(nested) {
				return false
			}
			continue
		}
		if cell != nil {
			return false
		}
	}
	return true
}

// Decode mapstructure-decodes a shaped result (as returned by Shape)
// into dst, the typed destination struct the public API binds a
// query's result to.
func Decode(shaped any, dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		WeaklyTypedInput: true,
		TagName:          "relq",
	})
	if err != nil {
		return rerr.New(rerr.DriverError, "result decoder construction failed: %v", err)
	}
	if err := dec.Decode(shaped); err != nil {
		return rerr.New(rerr.DriverError, "result decode failed: %v", err)
	}
	return nil
}
