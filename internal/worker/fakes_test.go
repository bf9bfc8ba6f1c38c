package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/shehryarbajwa/regpool/internal/browser"
	"github.com/shehryarbajwa/regpool/internal/flow"
	"github.com/shehryarbajwa/regpool/internal/logging"
	"github.com/shehryarbajwa/regpool/internal/sms"
	"github.com/shehryarbajwa/regpool/pkg/models"
)

type fakeProvider struct {
	mu         sync.Mutex
	acquireErr error
	codes      []string
	next       int
	polls      int
	confirms   []int
	releases   int
}

func (p *fakeProvider) Acquire(context.Context) (*sms.Lease, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	p.next++
	return &sms.Lease{PKey: fmt.Sprintf("pk%d", p.next), Phone: fmt.Sprintf("0900000%04d", p.next)}, nil
}

func (p *fakeProvider) Poll(context.Context, string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polls++
	if len(p.codes) == 0 {
		return "", nil
	}
	code := p.codes[0]
	p.codes = p.codes[1:]
	return code, nil
}

func (p *fakeProvider) Confirm(_ context.Context, _ string, remark int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirms = append(p.confirms, remark)
	return nil
}

func (p *fakeProvider) Release(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releases++
	return nil
}

func (p *fakeProvider) counts() (confirms, releases int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.confirms), p.releases
}

type fakeService struct {
	mu        sync.Mutex
	next      int
	createErr error
	closed    []string
	proxies   []*models.ProxyConfig
}

func (f *fakeService) Create(_ context.Context, req models.CreateBrowserRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.next++
	f.proxies = append(f.proxies, req.Proxy)
	return fmt.Sprintf("bid-%d", f.next), nil
}

func (f *fakeService) Open(_ context.Context, id string) (string, error) {
	return "ws://fake/" + id, nil
}

func (f *fakeService) Close(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, id)
	return nil
}

func (f *fakeService) Detail(_ context.Context, id string) (browser.Detail, error) {
	return browser.Detail{ID: id, Seq: 12}, nil
}

func (f *fakeService) closedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.closed)
}

type fakeDriver struct {
	mu        sync.Mutex
	openErr   error
	beginErr  error
	submitErr error
	uploadErr error
	sessions  []*fakeSession
}

func (d *fakeDriver) Open(_ context.Context, endpoint string, _ logging.Scoped) (flow.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	s := &fakeSession{driver: d, endpoint: endpoint}
	d.sessions = append(d.sessions, s)
	return s, nil
}

type fakeSession struct {
	driver    *fakeDriver
	endpoint  string
	profile   flow.Profile
	code      string
	uploaded  string
	uploadHit bool
	closed    bool
}

func (s *fakeSession) Begin(_ context.Context, p flow.Profile) error {
	s.profile = p
	return s.driver.beginErr
}

func (s *fakeSession) SubmitCode(_ context.Context, code string) error {
	s.code = code
	return s.driver.submitErr
}

func (s *fakeSession) UploadCertificate(_ context.Context, path string) error {
	s.uploaded = path
	s.uploadHit = true
	return s.driver.uploadErr
}

func (s *fakeSession) Close() { s.closed = true }
