package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shehryarbajwa/regpool/pkg/models"
)

var egressClient = &http.Client{Timeout: 10 * time.Second}

// FetchProxy asks the dynamic proxy source for a socks5 proxy.
// The source replies with plain text "IP:PORT:USER:PASS".
func FetchProxy(ctx context.Context, sourceURL string) (*models.ProxyConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build proxy request: %w", err)
	}

	resp, err := egressClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dynamic proxy: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read dynamic proxy: %w", err)
	}

	return ParseProxy(strings.TrimSpace(string(body)))
}

// ParseProxy parses "IP:PORT:USER:PASS"
func ParseProxy(s string) (*models.ProxyConfig, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid proxy %q: want IP:PORT:USER:PASS, got %d fields", s, len(parts))
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid proxy port %q: %w", parts[1], err)
	}
	return &models.ProxyConfig{
		Host:     parts[0],
		Port:     port,
		User:     parts[2],
		Password: parts[3],
	}, nil
}
