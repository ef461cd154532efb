package emit

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dosco-labs/relq/internal/codec"
)

// inferLiteralCodec picks a codec for a Lit call that was constructed
// with the zero Codec — the builder layer (C8) normally supplies one
// explicitly, so this only backstops ad-hoc literals built directly
// against the ir package in tests.
func inferLiteralCodec(v any) codec.Codec {
	switch v.(type) {
	case bool:
		return codec.Boolean
	case int, int32, int64:
		return codec.Integer
	case float32, float64:
		return codec.Real
	case time.Time:
		return codec.Date
	case string:
		return codec.Text
	default:
		return codec.JSON
	}
}

// sqlLiteral renders a serialized Primitive as inline SQL text.
func sqlLiteral(p codec.Primitive) string {
	switch v := p.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprintf("%v", v)
	}
}
