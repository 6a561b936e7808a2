package common

import (
	"sync"

	"github.com/quiltql/quilt/gqlerrors"
	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2/ast"
)

func IsEqual[T comparable](a []T, b []T) bool {
	if len(a) != len(b) {
		return false
	}

	for i, v := range a {
		if b[i] != v {
			return false
		}
	}
	return true
}

// AsyncMapReduce maps every payload element concurrently and folds the
// results into acc. Reduce order is not guaranteed, so reduceFunc must not
// depend on it. Errors are collected into a single ErrorList.
func AsyncMapReduce[T, P, A any](
	payload []T,
	acc A,
	mapFunc func(field T) (P, error),
	reduceFunc func(acc A, value P) A,
) (A, gqlerrors.ErrorList) {
	var mu sync.Mutex
	var wg sync.WaitGroup
	var errs gqlerrors.ErrorList

	wg.Add(len(payload))

	for _, value := range payload {
		go func(v T) {
			defer wg.Done()

			mapRes, err := mapFunc(v)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = gqlerrors.ExtendErrorList(errs, err)
				return
			}
			acc = reduceFunc(acc, mapRes)
		}(value)
	}

	wg.Wait()

	if len(errs) > 0 {
		return acc, errs
	}

	return acc, nil
}

// SelectionSetToFields flattens a selection set into plain fields, stepping
// into inline fragments and fragment spreads. If parentDef is passed, fields and fragments not
// represented in it are skipped.
func SelectionSetToFields(selectionSet ast.SelectionSet, parentDef *ast.Definition) []*ast.Field {
	var result []*ast.Field
	for _, s := range selectionSet {
		switch s := s.(type) {
		case *ast.Field:
			if parentDef != nil && !IsIntrospectionName(s.Name) && !lo.ContainsBy(parentDef.Fields, func(fd *ast.FieldDefinition) bool {
				return fd.Name == s.Name
			}) {
				continue
			}
			result = append(result, s)
		case *ast.InlineFragment:
			if parentDef != nil && s.TypeCondition != parentDef.Name {
				continue
			}
			result = append(result, SelectionSetToFields(s.SelectionSet, parentDef)...)
		case *ast.FragmentSpread:
			if s.Definition == nil {
				continue
			}
			if parentDef != nil && s.Definition.TypeCondition != parentDef.Name {
				continue
			}
			result = append(result, SelectionSetToFields(s.Definition.SelectionSet, parentDef)...)
		}
	}

	return result
}
