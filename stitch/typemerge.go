package stitch

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2/ast"
)

// TypeMergeFunc reconciles every candidate of one type name into a single
// composite definition.
type TypeMergeFunc func(typeName string, candidates []*MergeTypeCandidate) (*ast.Definition, error)

// DefaultTypeMerge unions the candidates field by field: the first candidate
// declaring a field keeps its definition, later same-named fields are
// skipped. Interfaces, union members, enum values and type directives are
// unioned the same way. Scalars are never merged, the last candidate wins.
func DefaultTypeMerge(typeName string, candidates []*MergeTypeCandidate) (*ast.Definition, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates for type %s", typeName)
	}

	kind := candidates[0].Type.Kind
	for _, c := range candidates[1:] {
		if c.Type.Kind != kind {
			return nil, fmt.Errorf("unable to merge type %s: kind %s conflicts with %s", typeName, c.Type.Kind, kind)
		}
	}

	if kind == ast.Scalar {
		merged := copyDefinition(candidates[len(candidates)-1].Type)
		merged.Name = typeName
		return merged, nil
	}

	merged := copyDefinition(candidates[0].Type)
	merged.Name = typeName

	for _, c := range candidates[1:] {
		def := c.Type

		if merged.Description == "" {
			merged.Description = def.Description
		}

		for _, f := range def.Fields {
			if merged.Fields.ForName(f.Name) == nil {
				merged.Fields = append(merged.Fields, f)
			}
		}

		for _, iface := range def.Interfaces {
			if !lo.Contains(merged.Interfaces, iface) {
				merged.Interfaces = append(merged.Interfaces, iface)
			}
		}

		for _, member := range def.Types {
			if !lo.Contains(merged.Types, member) {
				merged.Types = append(merged.Types, member)
			}
		}

		for _, ev := range def.EnumValues {
			if merged.EnumValues.ForName(ev.Name) == nil {
				merged.EnumValues = append(merged.EnumValues, ev)
			}
		}

		for _, d := range def.Directives {
			if merged.Directives.ForName(d.Name) == nil {
				merged.Directives = append(merged.Directives, d)
			}
		}
	}

	return merged, nil
}

// copyDefinition clones def one level deep so merging never mutates a
// candidate owned by a subschema.
func copyDefinition(def *ast.Definition) *ast.Definition {
	cpy := *def
	cpy.Fields = append(ast.FieldList{}, def.Fields...)
	cpy.Interfaces = append([]string{}, def.Interfaces...)
	cpy.Types = append([]string{}, def.Types...)
	cpy.EnumValues = append(ast.EnumValueList{}, def.EnumValues...)
	cpy.Directives = append(ast.DirectiveList{}, def.Directives...)
	return &cpy
}
