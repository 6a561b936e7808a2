package queryer

import "github.com/quiltql/quilt/requests"

// Queryer sends delegated operations to one remote GraphQL endpoint.
type Queryer interface {
	Query([]*requests.Request) ([]map[string]interface{}, error)
	Subscribe(*requests.Request, <-chan struct{}, chan *requests.Response) error
	URL() string
}
