// Package plan is the reconstruction-plan tree (§2 C7 input): it sits
// between internal/emit, which builds one in lock-step with
// projection, and internal/shape, which walks it against flat rows.
// It is its own package so emit and shape can both depend on it
// without depending on each other.
package plan

import "github.com/dosco-labs/relq/internal/codec"

// Kind tags which Plan variant a node is.
type Kind int

const (
	Scalar Kind = iota
	NestedObject
	NestedArray
	LeftJoinShape
)

// Field is one named entry of a NestedObject.
type Field struct {
	Key  string
	Plan Plan
}

// Plan mirrors the shape of a Query's final selection, per spec.md
// §3's ReconstructionPlan. Only the fields relevant to Kind are set.
type Plan struct {
	Kind Kind

	// Scalar
	ResultColumnName string
	Codec            codec.Codec

	// NestedObject
	Fields []Field

	// NestedArray / LeftJoinShape
	Inner *Plan
}

// NewScalar builds a Scalar plan node.
func NewScalar(resultColumnName string, c codec.Codec) Plan {
	return Plan{Kind: Scalar, ResultColumnName: resultColumnName, Codec: c}
}

// NewNestedObject builds a NestedObject plan node.
func NewNestedObject(fields ...Field) Plan {
	return Plan{Kind: NestedObject, Fields: fields}
}

// NewNestedArray builds a NestedArray plan node. resultColumnName is
// the SQL result column holding the json_group_array(...) cell; elem
// describes how to shape each decoded array element.
func NewNestedArray(resultColumnName string, elem Plan) Plan {
	return Plan{Kind: NestedArray, ResultColumnName: resultColumnName, Inner: &elem}
}

// NewLeftJoinShape wraps a plan as possibly-entirely-null.
func NewLeftJoinShape(inner Plan) Plan {
	return Plan{Kind: LeftJoinShape, Inner: &inner}
}
