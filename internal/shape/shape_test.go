package shape

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dosco-labs/relq/internal/codec"
	"github.com/dosco-labs/relq/internal/ir"
	"github.com/dosco-labs/relq/internal/plan"
)

func TestShape_ScalarRows_CardAll(t *testing.T) {
	p := plan.NewNestedObject(
		plan.Field{Key: "id", Plan: plan.NewScalar("id", codec.Integer)},
		plan.Field{Key: "name", Plan: plan.NewScalar("name", codec.Text)},
	)
	rows := []Row{
		{"id": int64(1), "name": "ada"},
		{"id": int64(2), "name": "grace"},
	}

	out, err := Shape(p, rows, ir.CardAll)
	require.NoError(t, err)
	list, ok := out.([]any)
	require.True(t, ok)
	require.Len(t, list, 2)
	require.Equal(t, map[string]any{"id": int64(1), "name": "ada"}, list[0])
}

func TestShape_CardOne_EmptyErrors(t *testing.T) {
	p := plan.NewNestedObject(plan.Field{Key: "id", Plan: plan.NewScalar("id", codec.Integer)})
	_, err := Shape(p, nil, ir.CardOne)
	require.Error(t, err)
}

func TestShape_CardMaybeOne_EmptyIsNil(t *testing.T) {
	p := plan.NewNestedObject(plan.Field{Key: "id", Plan: plan.NewScalar("id", codec.Integer)})
	out, err := Shape(p, nil, ir.CardMaybeOne)
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestShape_CardOne_TooManyErrors(t *testing.T) {
	p := plan.NewNestedObject(plan.Field{Key: "id", Plan: plan.NewScalar("id", codec.Integer)})
	rows := []Row{{"id": int64(1)}, {"id": int64(2)}}
	_, err := Shape(p, rows, ir.CardOne)
	require.Error(t, err)
}

func TestShape_NestedArrayFromJSONText(t *testing.T) {
	p := plan.NewNestedObject(
		plan.Field{Key: "id", Plan: plan.NewScalar("id", codec.Integer)},
		plan.Field{Key: "posts", Plan: plan.NewNestedArray("posts", plan.NewNestedObject(
			plan.Field{Key: "title", Plan: plan.NewScalar("title", codec.Text)},
		))},
	)
	rows := []Row{
		{"id": int64(1), "posts": `[{"title":"first"},{"title":"second"}]`},
	}

	out, err := Shape(p, rows, ir.CardFirst)
	require.NoError(t, err)
	obj := out.(map[string]any)
	posts := obj["posts"].([]any)
	require.Len(t, posts, 2)
	require.Equal(t, "first", posts[0].(map[string]any)["title"])
}

func TestShape_LeftJoinShapeAllNullBecomesNil(t *testing.T) {
	p := plan.NewNestedObject(
		plan.Field{Key: "id", Plan: plan.NewScalar("id", codec.Integer)},
		plan.Field{Key: "profile", Plan: plan.NewLeftJoinShape(plan.NewNestedObject(
			plan.Field{Key: "bio", Plan: plan.NewScalar("bio", codec.Text)},
		))},
	)
	rows := []Row{{"id": int64(1), "bio": nil}}

	out, err := Shape(p, rows, ir.CardFirst)
	require.NoError(t, err)
	obj := out.(map[string]any)
	require.Nil(t, obj["profile"])
}

func TestShape_LeftJoinShapePresentStays(t *testing.T) {
	p := plan.NewNestedObject(
		plan.Field{Key: "id", Plan: plan.NewScalar("id", codec.Integer)},
		plan.Field{Key: "profile", Plan: plan.NewLeftJoinShape(plan.NewNestedObject(
			plan.Field{Key: "bio", Plan: plan.NewScalar("bio", codec.Text)},
		))},
	)
	rows := []Row{{"id": int64(1), "bio": "hello"}}

	out, err := Shape(p, rows, ir.CardFirst)
	require.NoError(t, err)
	obj := out.(map[string]any)
	require.Equal(t, map[string]any{"bio": "hello"}, obj["profile"])
}

func TestDecode_IntoStruct(t *testing.T) {
	type user struct {
		ID   int64  `relq:"id"`
		Name string `relq:"name"`
	}
	var u user
	require.NoError(t, Decode(map[string]any{"id": int64(7), "name": "ada"}, &u))
	require.Equal(t, int64(7), u.ID)
	require.Equal(t, "ada", u.Name)
}
