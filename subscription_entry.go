package quilt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/quiltql/quilt/common"
	"github.com/quiltql/quilt/delegate"
	"github.com/quiltql/quilt/requests"

	"github.com/gobwas/ws/wsutil"
	"github.com/vektah/gqlparser/v2/ast"
)

// subscriptionEntry is one running subscription operation, delegated whole
// to the single subschema owning its root field. The request-side
// transforms run once at start; the result side runs per event with the
// same shared scratch map.
type subscriptionEntry struct {
	id       string
	dctx     *delegate.DelegationContext
	shared   map[string]interface{}
	isClosed bool

	closeCh    chan struct{}
	subCloseCh chan struct{}
	resCh      chan *delegate.Result

	sync.Mutex
}

func (g *Gateway) newSubscriptionEntry(
	ctx context.Context,
	id string,
	query *ast.QueryDocument,
	operation *ast.OperationDefinition,
	request *requests.Request,
) (*subscriptionEntry, error) {
	rootName := g.rootNames.Subscription
	rootDef := g.schema.Types[rootName]

	fields := common.SelectionSetToFields(operation.SelectionSet, rootDef)
	if len(fields) != 1 {
		return nil, errors.New("subscription operations must select exactly one root field")
	}

	cfg, ok := g.routes.Get(rootName, fields[0].Name)
	if !ok {
		return nil, fmt.Errorf("no subschema serves field %s.%s", rootName, fields[0].Name)
	}

	subscriber, ok := cfg.Executor.(delegate.Subscriber)
	if !ok {
		return nil, errors.New("subschema executor does not support subscriptions")
	}

	op := &ast.OperationDefinition{
		Operation:           ast.Subscription,
		Name:                operation.Name,
		VariableDefinitions: operation.VariableDefinitions,
		SelectionSet:        operation.SelectionSet,
	}

	req := &delegate.Request{
		Document: &ast.QueryDocument{
			Operations: ast.OperationList{op},
			Fragments:  query.Fragments,
		},
		Variables:     request.Variables,
		OperationName: operation.Name,
		OperationType: ast.Subscription,
	}

	dctx := &delegate.DelegationContext{
		Subschema:         cfg,
		TargetSchema:      g.schema,
		TransformedSchema: g.transformedSchemas[cfg],
		OriginalRequest:   req,
		Request:           req,
		OperationType:     ast.Subscription,
	}

	subEntry := &subscriptionEntry{
		id:         id,
		dctx:       dctx,
		shared:     make(map[string]interface{}),
		closeCh:    make(chan struct{}),
		subCloseCh: make(chan struct{}),
		resCh:      make(chan *delegate.Result),
	}

	delegate.TransformRequest(dctx, subEntry.shared)

	if err := subscriber.Subscribe(ctx, dctx.Request, subEntry.subCloseCh, subEntry.resCh); err != nil {
		return nil, err
	}

	return subEntry, nil
}

func (se *subscriptionEntry) prepareResponse(res *delegate.Result) *requests.Response {
	res = delegate.TransformResult(res, se.dctx, se.shared)
	return &requests.Response{
		Data:   res.Data,
		Errors: res.Errors,
	}
}

func (se *subscriptionEntry) Close() {
	se.TryLock()
	isClosed := se.isClosed
	se.Unlock()
	if isClosed {
		return
	}
	se.closeCh <- struct{}{}
}

func (se *subscriptionEntry) Listen(conn net.Conn) {
	defer func() {
		se.subCloseCh <- struct{}{}
		se.Lock()
		defer se.Unlock()
		close(se.subCloseCh)
		close(se.closeCh)
		close(se.resCh)
		se.isClosed = true
	}()

	for {
		select {
		case res := <-se.resCh:
			if res == nil {
				return
			}
			resp := se.prepareResponse(res)
			bResp, err := json.Marshal(requests.ServerSubMsg{
				ID:      se.id,
				Type:    requests.SubData,
				Payload: resp,
			})
			if err != nil {
				return
			}
			if err := wsutil.WriteServerText(conn, bResp); err != nil {
				return
			}
		case <-se.closeCh:
			return
		}
	}
}
