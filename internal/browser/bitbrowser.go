package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shehryarbajwa/regpool/pkg/models"
)

// DefaultBitBrowserAPI is the local BitBrowser API address
const DefaultBitBrowserAPI = "http://127.0.0.1:54345"

// BitBrowser drives windows through the local BitBrowser HTTP API
type BitBrowser struct {
	apiBase    string
	httpClient *http.Client
	openClient *http.Client
}

// NewBitBrowser creates a BitBrowser client. openTimeout bounds /browser/open,
// which has to wait for the window to boot.
func NewBitBrowser(apiBase string, openTimeout time.Duration) *BitBrowser {
	if apiBase == "" {
		apiBase = DefaultBitBrowserAPI
	}
	if openTimeout <= 0 {
		openTimeout = 60 * time.Second
	}
	return &BitBrowser{
		apiBase:    apiBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		openClient: &http.Client{Timeout: openTimeout},
	}
}

type bitResponse struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

type fingerprint struct {
	CoreVersion      string `json:"coreVersion"`
	OSType           string `json:"ostype"`
	OS               string `json:"os"`
	OpenWidth        int    `json:"openWidth"`
	OpenHeight       int    `json:"openHeight"`
	ResolutionType   string `json:"resolutionType"`
	Resolution       string `json:"resolution"`
	DevicePixelRatio int    `json:"devicePixelRatio"`
}

type updatePayload struct {
	Name               string      `json:"name"`
	BrowserFingerPrint fingerprint `json:"browserFingerPrint"`
	ProxyMethod        int         `json:"proxyMethod,omitempty"`
	ProxyType          string      `json:"proxyType,omitempty"`
	Host               string      `json:"host,omitempty"`
	Port               int         `json:"port,omitempty"`
	ProxyUserName      string      `json:"proxyUserName,omitempty"`
	ProxyPassword      string      `json:"proxyPassword,omitempty"`
}

func (b *BitBrowser) post(ctx context.Context, client *http.Client, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiBase+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach bitbrowser %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s reply: %w", path, err)
	}

	var reply bitResponse
	if err := json.Unmarshal(raw, &reply); err != nil {
		return fmt.Errorf("invalid %s reply (status %d): %w", path, resp.StatusCode, err)
	}
	if !reply.Success {
		msg := reply.Msg
		if msg == "" {
			msg = string(raw)
		}
		return fmt.Errorf("%w: %s: %s", ErrRemote, path, msg)
	}

	if out != nil && len(reply.Data) > 0 {
		if err := json.Unmarshal(reply.Data, out); err != nil {
			return fmt.Errorf("invalid %s data: %w", path, err)
		}
	}
	return nil
}

// Create creates a window with an Android fingerprint and optional socks5 proxy
func (b *BitBrowser) Create(ctx context.Context, req models.CreateBrowserRequest) (string, error) {
	name := req.Name
	if name == "" {
		name = "android_worker"
	}
	payload := updatePayload{
		Name: name,
		BrowserFingerPrint: fingerprint{
			CoreVersion:      "134",
			OSType:           "Android",
			OS:               "Linux armv81",
			OpenWidth:        450,
			OpenHeight:       800,
			ResolutionType:   "1",
			Resolution:       "360x780",
			DevicePixelRatio: 2,
		},
	}
	if p := req.Proxy; p != nil {
		payload.ProxyMethod = 2
		payload.ProxyType = "socks5"
		payload.Host = p.Host
		payload.Port = p.Port
		payload.ProxyUserName = p.User
		payload.ProxyPassword = p.Password
	}

	var data struct {
		ID string `json:"id"`
	}
	if err := b.post(ctx, b.httpClient, "/browser/update", payload, &data); err != nil {
		return "", err
	}
	if data.ID == "" {
		return "", fmt.Errorf("%w: /browser/update returned no id", ErrRemote)
	}
	return data.ID, nil
}

// Open boots the window and returns its CDP websocket endpoint
func (b *BitBrowser) Open(ctx context.Context, id string) (string, error) {
	var data struct {
		WS string `json:"ws"`
	}
	if err := b.post(ctx, b.openClient, "/browser/open", map[string]string{"id": id}, &data); err != nil {
		return "", err
	}
	if data.WS == "" {
		return "", fmt.Errorf("%w: /browser/open returned no ws endpoint", ErrRemote)
	}
	return data.WS, nil
}

// Close closes the window
func (b *BitBrowser) Close(ctx context.Context, id string) error {
	return b.post(ctx, b.httpClient, "/browser/close", map[string]string{"id": id}, nil)
}

// Detail returns window metadata, including its sequence number
func (b *BitBrowser) Detail(ctx context.Context, id string) (Detail, error) {
	var data struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Seq  int    `json:"seq"`
	}
	if err := b.post(ctx, b.httpClient, "/browser/detail", map[string]string{"id": id}, &data); err != nil {
		return Detail{}, err
	}
	return Detail{ID: data.ID, Name: data.Name, Seq: data.Seq}, nil
}

// Arrange tiles the given windows on screen
func (b *BitBrowser) Arrange(ctx context.Context, seqs ...int) error {
	return b.post(ctx, b.httpClient, "/windowbounds/flexable", map[string][]int{"seqlist": seqs}, nil)
}
