package browser

import (
	"context"
	"errors"

	"github.com/shehryarbajwa/regpool/pkg/models"
)

// ErrRemote marks a failure reported by the browser-hosting service itself
var ErrRemote = errors.New("browser service error")

// ErrProxyAuth is returned by backends that cannot pass proxy credentials
var ErrProxyAuth = errors.New("authenticated proxies are not supported by this backend")

// Detail is remote metadata about one window
type Detail struct {
	ID   string
	Name string
	Seq  int
}

// Service is a remote browser-hosting backend. Every call is a fallible
// remote operation; none are retried here.
type Service interface {
	Create(ctx context.Context, req models.CreateBrowserRequest) (string, error)
	Open(ctx context.Context, id string) (string, error)
	Close(ctx context.Context, id string) error
	Detail(ctx context.Context, id string) (Detail, error)
}
