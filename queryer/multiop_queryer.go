package queryer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/quiltql/quilt/common"
	"github.com/quiltql/quilt/requests"

	"github.com/samber/lo"
)

type chunkResponse struct {
	Index    int
	Response []map[string]interface{}
}

// RequestMiddleware are functions that can be passed to a Queryer to affect
// its internal behavior
type RequestMiddleware func(*http.Request) error

// MultiOpQueryer is a queryer that batches subsequent queries into a single
// network request to a single target
type MultiOpQueryer struct {
	ctx     context.Context
	url     string
	client  *http.Client
	mdwares []RequestMiddleware

	maxBatchSize int
}

var _ Queryer = &MultiOpQueryer{}

// NewMultiOpQueryer returns a MultiOpQueryer with the provided parameters
func NewMultiOpQueryer(url string, maxBatchSize int) *MultiOpQueryer {
	return &MultiOpQueryer{
		url:          url,
		client:       &http.Client{},
		maxBatchSize: maxBatchSize,
		ctx:          context.Background(),
	}
}

// WithContext sets ctx which will be passed to following http.Request
func (q *MultiOpQueryer) WithContext(ctx context.Context) *MultiOpQueryer {
	q.ctx = ctx
	return q
}

// WithMiddlewares lets the user assign middlewares to the queryer
func (q *MultiOpQueryer) WithMiddlewares(mwares []RequestMiddleware) *MultiOpQueryer {
	q.mdwares = mwares
	return q
}

// WithHTTPClient lets the user configure the client to use when making
// network requests
func (q *MultiOpQueryer) WithHTTPClient(client *http.Client) *MultiOpQueryer {
	q.client = client
	return q
}

func (q *MultiOpQueryer) URL() string {
	return q.url
}

func (q *MultiOpQueryer) Query(inputs []*requests.Request) ([]map[string]interface{}, error) {
	// fit in max batch size
	lInputs := len(inputs)
	if lInputs <= q.maxBatchSize {
		return q.queryBatch(inputs)
	}

	// divide into smaller batches
	chunks := lInputs/q.maxBatchSize + 1

	res, err := common.AsyncMapReduce(
		lo.Range(chunks),
		make([]map[string]interface{}, len(inputs)),
		func(i int) (*chunkResponse, error) {
			var inputsSlice []*requests.Request
			if (i+1)*q.maxBatchSize > lInputs {
				inputsSlice = inputs[i*q.maxBatchSize:]
			} else {
				inputsSlice = inputs[i*q.maxBatchSize : (i+1)*q.maxBatchSize]
			}

			res, err := q.queryBatch(inputsSlice)
			if err != nil {
				return nil, err
			}

			return &chunkResponse{
				Index:    i,
				Response: res,
			}, nil
		},
		func(acc []map[string]interface{}, value *chunkResponse) []map[string]interface{} {
			for j, resp := range value.Response {
				acc[value.Index*q.maxBatchSize+j] = resp
			}
			return acc
		},
	)

	if err != nil {
		return nil, err
	}

	return res, nil
}

// queryBatch executes provided inputs in a single network request
func (q *MultiOpQueryer) queryBatch(inputs []*requests.Request) ([]map[string]interface{}, error) {
	payload, err := json.Marshal(inputs)
	if err != nil {
		return nil, err
	}

	body, err := q.sendQueryRequest(payload)
	if err != nil {
		return nil, err
	}

	resps := make(requests.Responses, len(inputs))
	if err := json.Unmarshal(body, &resps); err != nil {
		return nil, err
	}

	if len(resps) != len(inputs) {
		return nil, errors.New("not all requests were fetched")
	}

	results := make([]map[string]interface{}, len(inputs))
	for i, resp := range resps {
		if len(resp.Errors) != 0 {
			return nil, resp.Errors
		}
		results[i] = resp.Data
	}

	return results, nil
}

// sendQueryRequest is responsible for sending the provided payload to the
// designated URL
func (q *MultiOpQueryer) sendQueryRequest(payload []byte) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, q.url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	if q.ctx != nil {
		req = req.WithContext(q.ctx)
	}
	req.Header.Set("Content-Type", "application/json")

	for _, mdware := range q.mdwares {
		if err := mdware(req); err != nil {
			return nil, err
		}
	}

	if q.client == nil {
		q.client = &http.Client{}
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, fmt.Errorf("response was not successful with status code: %d", resp.StatusCode)
	}

	return body, nil
}
