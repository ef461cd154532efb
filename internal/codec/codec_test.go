package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		codec Codec
		value any
	}{
		{"text", Text, "hello"},
		{"integer", Integer, int64(42)},
		{"real", Real, 3.25},
		{"boolean true", Boolean, true},
		{"boolean false", Boolean, false},
		{"json object", JSON, map[string]any{"a": float64(1)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := tc.codec.Serialize(tc.value)
			require.NoError(t, err)

			v, err := tc.codec.Parse(p)
			require.NoError(t, err)
			require.Equal(t, tc.value, v)
		})
	}
}

func TestDateRoundTrip(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	p, err := Date.Serialize(now)
	require.NoError(t, err)
	require.Equal(t, "2026-07-30T12:00:00Z", p)

	v, err := Date.Parse(p)
	require.NoError(t, err)
	require.True(t, now.Equal(v.(time.Time)))
}

func TestNullable(t *testing.T) {
	nc := Text.AsNullable()

	p, err := nc.Serialize(nil)
	require.NoError(t, err)
	require.Nil(t, p)

	v, err := nc.Parse(nil)
	require.NoError(t, err)
	require.Nil(t, v)

	_, err = Text.Serialize(nil)
	require.Error(t, err)
}

func TestBooleanStrictParse(t *testing.T) {
	_, err := Boolean.Parse(int64(2))
	require.Error(t, err)
}

func TestCodecErrorOnUnparseableJSON(t *testing.T) {
	_, err := JSON.Parse("{not json")
	require.Error(t, err)
}
