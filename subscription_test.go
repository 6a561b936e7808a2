package quilt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quiltql/quilt/delegate"
	"github.com/quiltql/quilt/requests"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
)

type mockSubscriber struct {
	mockExecutor
	ResCh chan *delegate.Result
}

func (m *mockSubscriber) Subscribe(ctx context.Context, req *delegate.Request, closeCh <-chan struct{}, resCh chan<- *delegate.Result) error {
	m.mu.Lock()
	m.lastReq = req
	m.mu.Unlock()
	go func() {
		select {
		case res := <-m.ResCh:
			resCh <- res
		case <-closeCh:
		}
	}()
	return nil
}

func TestGatewaySubscription(t *testing.T) {
	sub := &mockSubscriber{
		ResCh: make(chan *delegate.Result),
	}

	gw, err := NewGateway([]*delegate.SubschemaConfig{{
		Schema: mustLoadSchema(`
			type Query {
				getName: String!
			}

			type Subscription {
				test: String!
			}
		`),
		Executor: sub,
	}})
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(gw.Handler))
	defer server.Close()

	dialer := ws.Dialer{
		Timeout:   time.Second,
		Protocols: []string{"graphql-ws"},
	}

	url := strings.Replace(server.URL, "http", "ws", 1)

	conn, _, _, err := dialer.Dial(context.Background(), url)
	require.NoError(t, err)

	bInitMsg, _ := json.Marshal(requests.ClientSubMsg{
		Type: requests.SubConnectionInit,
	})

	err = wsutil.WriteClientText(conn, bInitMsg)
	require.NoError(t, err)

	payload := &requests.Request{
		Query: "subscription { test }",
	}
	bRequestMsg, _ := json.Marshal(requests.ClientSubMsg{
		Type:    requests.SubStart,
		ID:      "1",
		Payload: payload,
	})

	err = wsutil.WriteClientText(conn, bRequestMsg)
	require.NoError(t, err)

	expectedResp := map[string]interface{}{
		"test": "YES",
	}

	doneCh := make(chan bool)
	go func() {
		for {
			msg, _ := wsutil.ReadServerText(conn)
			go func() {
				sub.ResCh <- &delegate.Result{
					Data: expectedResp,
				}
			}()

			var serverResp requests.ServerSubMsg
			json.Unmarshal(msg, &serverResp)

			switch serverResp.Type {
			case requests.SubComplete,
				requests.SubConnectionError,
				requests.SubConnectionTerminate,
				requests.SubError:
				require.FailNow(t, "wrong event")
				return
			case requests.SubData:
				require.EqualValues(t, expectedResp, serverResp.Payload.Data)
				doneCh <- true
				return
			}
		}
	}()

	select {
	case <-doneCh:
		break
	case <-time.Tick(time.Second * 5):
		require.FailNow(t, "timeout")
	}

	// the whole operation went to the owning subschema
	require.NotNil(t, sub.LastReq())

	// stop the running operation
	msg, _ := json.Marshal(requests.ClientSubMsg{
		Type: requests.SubStop,
		ID:   "1",
	})

	err = wsutil.WriteClientText(conn, msg)
	require.NoError(t, err)

	// terminate the connection
	msg, _ = json.Marshal(requests.ClientSubMsg{
		Type: requests.SubConnectionTerminate,
	})

	err = wsutil.WriteClientText(conn, msg)
	require.NoError(t, err)

	// connection should be closed
	_, _, err = wsutil.ReadServerData(conn)
	require.Error(t, err)
}

func TestNewSubscriptionEntryErrors(t *testing.T) {
	// executor without subscription support
	gw, err := NewGateway([]*delegate.SubschemaConfig{{
		Schema: mustLoadSchema(`
			type Query {
				getName: String!
			}

			type Subscription {
				test: String!
			}
		`),
		Executor: &mockExecutor{Res: &delegate.Result{}},
	}})
	require.NoError(t, err)

	op := &ast.OperationDefinition{
		Operation: ast.Subscription,
		SelectionSet: ast.SelectionSet{
			&ast.Field{Name: "test"},
		},
	}

	_, err = gw.newSubscriptionEntry(
		context.Background(),
		"1",
		&ast.QueryDocument{Operations: ast.OperationList{op}},
		op,
		&requests.Request{},
	)
	require.Error(t, err)

	// more than one root field
	op.SelectionSet = ast.SelectionSet{
		&ast.Field{Name: "test"},
		&ast.Field{Name: "test"},
	}
	_, err = gw.newSubscriptionEntry(
		context.Background(),
		"1",
		&ast.QueryDocument{Operations: ast.OperationList{op}},
		op,
		&requests.Request{},
	)
	require.Error(t, err)
}
