package quilt

import (
	"context"
	"errors"

	"github.com/quiltql/quilt/delegate"
	"github.com/quiltql/quilt/format"
	"github.com/quiltql/quilt/gqlerrors"
	"github.com/quiltql/quilt/queryer"
	"github.com/quiltql/quilt/requests"

	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2/ast"
)

// QueryerExecutor adapts a queryer into the delegation execution interfaces,
// rendering each delegated operation back into a query string before it
// crosses the network.
type QueryerExecutor struct {
	Queryer queryer.Queryer
}

var _ delegate.Executor = &QueryerExecutor{}
var _ delegate.Subscriber = &QueryerExecutor{}

// NewQueryerExecutor returns an executor delegating to the remote graphql
// endpoint at url.
func NewQueryerExecutor(url string) *QueryerExecutor {
	return &QueryerExecutor{
		Queryer: queryer.NewMultiOpQueryer(url, 3000),
	}
}

func (e *QueryerExecutor) Execute(ctx context.Context, req *delegate.Request) *delegate.Result {
	wireReq, err := e.wireRequest(req)
	if err != nil {
		return &delegate.Result{Errors: gqlerrors.FormatError(err)}
	}

	res, err := e.Queryer.Query([]*requests.Request{wireReq})
	if err != nil {
		return &delegate.Result{Errors: gqlerrors.FormatError(err)}
	}

	if len(res) == 0 {
		return &delegate.Result{}
	}

	return &delegate.Result{Data: res[0]}
}

func (e *QueryerExecutor) Subscribe(ctx context.Context, req *delegate.Request, closeCh <-chan struct{}, resCh chan<- *delegate.Result) error {
	wireReq, err := e.wireRequest(req)
	if err != nil {
		return err
	}

	innerCh := make(chan *requests.Response)

	if err := e.Queryer.Subscribe(wireReq, closeCh, innerCh); err != nil {
		return err
	}

	go func() {
		for resp := range innerCh {
			if resp == nil {
				resCh <- nil
				return
			}
			resCh <- &delegate.Result{
				Data:   resp.Data,
				Errors: resp.Errors,
			}
		}
	}()

	return nil
}

func (e *QueryerExecutor) wireRequest(req *delegate.Request) (*requests.Request, error) {
	op := req.Operation()
	if op == nil {
		return nil, errors.New("request carries no operation")
	}

	bf := format.NewDebugBufferedFormatter().WithOperationType(req.OperationType)
	if op.Name != "" {
		bf = bf.WithOperationName(op.Name)
	}

	wireReq := &requests.Request{
		Query:     bf.FormatSelectionSet(inlineFragments(op.SelectionSet)),
		Variables: req.Variables,
	}
	if op.Name != "" {
		wireReq.OperationName = lo.ToPtr(op.Name)
	}

	return wireReq, nil
}

// inlineFragments replaces every fragment spread with an equivalent inline
// fragment, so the rendered query needs no fragment definitions.
func inlineFragments(ss ast.SelectionSet) ast.SelectionSet {
	res := make(ast.SelectionSet, 0, len(ss))
	for _, sel := range ss {
		switch v := sel.(type) {
		case *ast.Field:
			cpy := *v
			cpy.SelectionSet = inlineFragments(v.SelectionSet)
			res = append(res, &cpy)
		case *ast.InlineFragment:
			cpy := *v
			cpy.SelectionSet = inlineFragments(v.SelectionSet)
			res = append(res, &cpy)
		case *ast.FragmentSpread:
			if v.Definition == nil {
				continue
			}
			res = append(res, &ast.InlineFragment{
				TypeCondition: v.Definition.TypeCondition,
				Directives:    v.Directives,
				SelectionSet:  inlineFragments(v.Definition.SelectionSet),
			})
		}
	}
	return res
}
