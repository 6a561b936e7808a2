package delegate

import (
	"github.com/quiltql/quilt/gqlerrors"
)

// Result is the partial result of one delegated call: the visible data tree
// plus the errors rooted at or below it, carried on an explicit side channel
// instead of a hidden key inside the data.
type Result struct {
	Data   map[string]interface{} `json:"data"`
	Errors gqlerrors.ErrorList    `json:"errors,omitempty"`
}

// ErrorsForField returns the errors belonging to the child field with the
// given response key: those whose leading path segment equals name, plus
// errors carrying no path at all, which apply everywhere.
func (r *Result) ErrorsForField(name string) gqlerrors.ErrorList {
	var out gqlerrors.ErrorList
	for _, err := range r.Errors {
		if len(err.Path) == 0 {
			out = append(out, err)
			continue
		}
		if gqlerrors.PathSegmentKey(err.Path[0]) == name {
			out = append(out, err)
		}
	}
	return out
}

// WithErrors returns a copy of r carrying errs on its side channel.
func (r *Result) WithErrors(errs gqlerrors.ErrorList) *Result {
	return &Result{
		Data:   r.Data,
		Errors: errs,
	}
}
