package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/livequery/internal/ir"
)

func TestValidate_ValidSelect(t *testing.T) {
	q := Select{
		From: "posts",
		Filter: And{Predicates: []Predicate{
			Equals{Field: "status", Value: ir.IRString("open")},
			Or{Predicates: []Predicate{
				In{Field: "id", Values: []ir.IRValue{ir.IRInt(1), ir.IRInt(2)}},
			}},
		}},
		OrderBy: []Order{{Field: "rank", Desc: true}},
	}

	result := Validate(q)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidate_PointerForms(t *testing.T) {
	q := &Select{From: "posts", Filter: &Equals{Field: "id", Value: ir.IRInt(1)}}
	assert.True(t, Validate(q).Valid)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		node     any
		contains string
	}{
		{"missing collection", Select{}, "no collection"},
		{"missing order field", Select{From: "p", OrderBy: []Order{{}}}, "order_by[0]"},
		{"missing field", Equals{Value: ir.IRInt(1)}, "no field"},
		{"nil value", Equals{Field: "x"}, "nil value"},
		{"array literal", In{Field: "x", Values: []ir.IRValue{ir.IRArray{}}}, "only scalars"},
		{"nested in and", And{Predicates: []Predicate{Equals{Field: "x"}}}, "nil value"},
		{"unknown node", 42, "unknown node type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.node)
			assert.False(t, result.Valid)
			if assert.NotEmpty(t, result.Errors) {
				assert.Contains(t, result.Errors[0], tt.contains)
			}
		})
	}
}
