package requests

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Request represents a single request sent via HTTP
type Request struct {
	Original      *http.Request          `json:"-"`
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName *string                `json:"operationName"`
}

// ParseRequestResponse is the result of Parse. It contains the requests
// array and an indicator whether the request was running in batch mode.
type ParseRequestResponse struct {
	Requests    []*Request
	IsBatchMode bool
}

func Parse(r *http.Request) (resp *ParseRequestResponse, finalErr error) {
	defer func() {
		if resp == nil {
			return
		}
		for _, req := range resp.Requests {
			req.Original = r
		}
	}()
	if r.Method != http.MethodPost {
		return nil, errors.New("only POST requests are supported")
	}

	contentType := strings.SplitN(r.Header.Get("Content-Type"), ";", 2)[0]

	switch contentType {
	case "text/plain", "application/json", "":
		requestBytes, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("encountered error reading body: %s", err)
		}
		resp, finalErr = parseRequest(requestBytes)
		return
	default:
		return nil, fmt.Errorf("unknown content-type: %s", contentType)
	}
}

// parseRequest takes the byte body of a request and tries to parse it.
func parseRequest(body []byte) (*ParseRequestResponse, error) {
	if IsBatchMode(body) {
		// multiple objects case
		var multipleRequests []*Request

		if err := json.Unmarshal(body, &multipleRequests); err != nil {
			return nil, fmt.Errorf("unable to parse given request in batch mode: %s", body)
		}

		for _, r := range multipleRequests {
			if r.Query == "" {
				return nil, errors.New("missing query from request")
			}
		}

		return &ParseRequestResponse{
			Requests:    multipleRequests,
			IsBatchMode: true,
		}, nil
	}

	// single object case
	var singleRequest Request
	if err := json.Unmarshal(body, &singleRequest); err != nil {
		return nil, fmt.Errorf("unable to parse given request in single mode: %s", body)
	}

	if singleRequest.Query == "" {
		return nil, errors.New("missing query from request")
	}

	return &ParseRequestResponse{
		Requests:    []*Request{&singleRequest},
		IsBatchMode: false,
	}, nil
}

// IsBatchMode reports whether the body holds a JSON array of requests.
func IsBatchMode(body []byte) bool {
	for _, c := range body {
		if c == '[' {
			return true
		}
		if c == '{' {
			return false
		}
	}

	return false
}
