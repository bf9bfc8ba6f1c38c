package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/shehryarbajwa/regpool/pkg/models"
)

func TestDockerCreateRejectsProxyCredentials(t *testing.T) {
	// no docker client: the request must be refused before reaching the daemon
	d := &DockerService{image: DefaultImage, seq: atomic.NewInt64(0)}

	_, err := d.Create(context.Background(), models.CreateBrowserRequest{
		Name:  "test_browser",
		Proxy: &models.ProxyConfig{Host: "1.2.3.4", Port: 1080, User: "u", Password: "p"},
	})
	require.ErrorIs(t, err, ErrProxyAuth)
	assert.Equal(t, int64(0), d.seq.Load())
}
