package models

import "time"

// BrowserStatus represents the lease state of a remote browser instance
type BrowserStatus string

const (
	StatusIdle      BrowserStatus = "IDLE"
	StatusRunning   BrowserStatus = "RUNNING"
	StatusWaitHuman BrowserStatus = "WAIT_HUMAN"
	StatusClosed    BrowserStatus = "CLOSED"
)

// BrowserInstance represents a remotely-hosted browser window leased to an account
type BrowserInstance struct {
	BrowserID string        `json:"browserId"`
	AccountID string        `json:"accountId"`
	Status    BrowserStatus `json:"status"`
	Endpoint  string        `json:"-"` // CDP websocket, only for the current holder
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// CanBeAcquired reports whether the instance is free for automatic reuse
func (b BrowserInstance) CanBeAcquired() bool {
	return b.Status == StatusIdle
}

// ProxyConfig is an authenticated socks5 egress proxy
type ProxyConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// CreateBrowserRequest is the payload for creating a browser window
type CreateBrowserRequest struct {
	Name  string       `json:"name"`
	Proxy *ProxyConfig `json:"proxy,omitempty"`
}
