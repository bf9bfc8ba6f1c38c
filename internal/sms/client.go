// Package sms talks to the firefox.fun number-lease service: acquiring a
// disposable phone number, polling for its verification code and settling
// the lease.
package sms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the provider endpoint
const DefaultBaseURL = "http://www.firefox.fun/yhapi.ashx"

// phoneWidth is the fixed width leased numbers are padded to
const phoneWidth = 11

var (
	// ErrNoNumber is returned when the provider has no number to lease
	ErrNoNumber = errors.New("no number available")
	// ErrCodeTimeout is returned when no code arrived before the deadline
	ErrCodeTimeout = errors.New("verification timeout")
)

// Remark values reported with Confirm
const (
	RemarkSuccess = 0
	RemarkFailed  = 1
)

// Client is a firefox.fun API client bound to one item (project) id
type Client struct {
	baseURL    string
	token      string
	itemID     int
	httpClient *http.Client
}

// NewClient creates a provider client. token and itemID are fixed for its lifetime.
func NewClient(baseURL, token string, itemID int) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("sms token is not configured")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		itemID:     itemID,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// call performs one API request. Replies are pipe separated: "1|a|b" on
// success, "0|reason" otherwise. The status field is stripped from fields.
func (c *Client) call(ctx context.Context, params url.Values) (bool, []string, error) {
	params.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return false, nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, nil, fmt.Errorf("failed to call %s: %w", params.Get("act"), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, nil, fmt.Errorf("failed to read %s reply: %w", params.Get("act"), err)
	}

	parts := strings.Split(strings.TrimSpace(string(body)), "|")
	return parts[0] == "1", parts[1:], nil
}

// Balance returns the account balance
func (c *Client) Balance(ctx context.Context) (float64, error) {
	ok, fields, err := c.call(ctx, url.Values{"act": {"myInfo"}})
	if err != nil {
		return 0, err
	}
	if !ok || len(fields) < 1 {
		return 0, fmt.Errorf("balance query rejected: %s", strings.Join(fields, "|"))
	}
	balance, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid balance %q: %w", fields[0], err)
	}
	return balance, nil
}

// Acquire leases a phone number. Any non-success reply yields ErrNoNumber;
// retrying is the caller's decision.
func (c *Client) Acquire(ctx context.Context) (*Lease, error) {
	ok, fields, err := c.call(ctx, url.Values{
		"act": {"getPhone"},
		"iid": {strconv.Itoa(c.itemID)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoNumber, err)
	}
	if !ok || len(fields) < 6 {
		return nil, fmt.Errorf("%w: %s", ErrNoNumber, strings.Join(fields, "|"))
	}

	phone := fields[5]
	if len(fields) > 6 {
		phone = fields[6]
	}
	phone = strings.TrimSpace(phone)
	if fields[0] == "" || phone == "" {
		return nil, fmt.Errorf("%w: empty lease in reply", ErrNoNumber)
	}

	return &Lease{PKey: fields[0], Phone: normalizePhone(phone)}, nil
}

// Poll queries the code for pkey once. It returns "" with a nil error when
// the code has not arrived yet or fails validation.
func (c *Client) Poll(ctx context.Context, pkey string) (string, error) {
	ok, fields, err := c.call(ctx, url.Values{
		"act":  {"getPhoneCode"},
		"pkey": {pkey},
	})
	if err != nil {
		return "", err
	}
	if !ok || len(fields) < 1 {
		return "", nil
	}
	code := strings.TrimSpace(fields[0])
	if !validCode(code) {
		return "", nil
	}
	return code, nil
}

// Release abandons the lease without disposition
func (c *Client) Release(ctx context.Context, pkey string) error {
	ok, fields, err := c.call(ctx, url.Values{
		"act":  {"setRel"},
		"pkey": {pkey},
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("release rejected: %s", strings.Join(fields, "|"))
	}
	return nil
}

// Confirm reports the lease disposition
func (c *Client) Confirm(ctx context.Context, pkey string, remark int) error {
	ok, fields, err := c.call(ctx, url.Values{
		"act":    {"apiReturn"},
		"pkey":   {pkey},
		"remark": {strconv.Itoa(remark)},
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("confirm rejected: %s", strings.Join(fields, "|"))
	}
	return nil
}

func normalizePhone(phone string) string {
	if len(phone) >= phoneWidth {
		return phone
	}
	return strings.Repeat("0", phoneWidth-len(phone)) + phone
}

func validCode(code string) bool {
	if len(code) < 4 || len(code) > 8 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
