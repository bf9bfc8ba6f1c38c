package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/regpool/internal/assets"
	"github.com/shehryarbajwa/regpool/internal/browser"
	"github.com/shehryarbajwa/regpool/internal/region"
	"github.com/shehryarbajwa/regpool/internal/sms"
	"github.com/shehryarbajwa/regpool/pkg/models"
)

type harness struct {
	provider *fakeProvider
	service  *fakeService
	driver   *fakeDriver
	manager  *browser.Manager
	deps     Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		provider: &fakeProvider{codes: []string{"123456"}},
		service:  &fakeService{},
		driver:   &fakeDriver{},
	}
	h.manager = browser.NewManager(h.service, nil)
	h.deps = Deps{
		SMS:      h.provider,
		Poller:   &sms.Poller{Provider: h.provider, Interval: time.Millisecond, Timeout: time.Second, Clock: clock.New()},
		Browsers: h.manager,
		Driver:   h.driver,
	}
	return h
}

func (h *harness) worker() *Worker {
	return New(h.deps)
}

func TestRunSuccess(t *testing.T) {
	h := newHarness(t)

	res := h.worker().Run(context.Background(), 3, Options{AutoClose: true})

	require.Equal(t, models.ResultSuccess, res.Status, res.Error)
	assert.Equal(t, 3, res.Index)
	assert.Equal(t, 12, res.WindowSeq)
	assert.Equal(t, "09000000001", res.Phone)
	assert.Regexp(t, `^[a-z]{3}[0-9]{3}$`, res.Password)
	assert.Regexp(t, `^[a-z0-9]{12}@gmail\.com$`, res.Email)
	assert.Regexp(t, `^user_\d{5}$`, res.Nickname)
	assert.NotEmpty(t, res.Region)
	assert.NotEmpty(t, res.DOB)
	assert.Empty(t, res.Error)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))

	confirms, releases := h.provider.counts()
	assert.Equal(t, 1, confirms)
	assert.Equal(t, []int{sms.RemarkSuccess}, h.provider.confirms)
	assert.Zero(t, releases)

	require.Len(t, h.driver.sessions, 1)
	s := h.driver.sessions[0]
	assert.Equal(t, "123456", s.code)
	assert.Equal(t, "ws://fake/bid-1", s.endpoint)
	assert.Equal(t, res.Phone, s.profile.Phone)
	assert.True(t, s.closed)
	assert.False(t, s.uploadHit, "no certificate assets, nothing to upload")

	assert.Equal(t, 1, h.service.closedCount())
	assert.Zero(t, h.manager.Len())
}

func TestRunKeepsWindowForHumanWithoutAutoClose(t *testing.T) {
	h := newHarness(t)

	res := h.worker().Run(context.Background(), 1, Options{AutoClose: false})
	require.True(t, res.Succeeded())

	got, ok := h.manager.Get(res.BrowserID)
	require.True(t, ok)
	assert.Equal(t, models.StatusWaitHuman, got.Status)
	assert.Equal(t, res.Phone, got.AccountID)
	assert.Zero(t, h.service.closedCount())

	_, ok = h.manager.Acquire(res.Phone)
	assert.False(t, ok)
}

func TestRunNoNumber(t *testing.T) {
	h := newHarness(t)
	h.provider.acquireErr = fmt.Errorf("%w: 0|no stock", sms.ErrNoNumber)

	res := h.worker().Run(context.Background(), 1, Options{AutoClose: true})

	assert.Equal(t, models.ResultFailed, res.Status)
	assert.Contains(t, res.Error, "no number available")
	assert.Empty(t, res.BrowserID)
	assert.Zero(t, h.manager.Len())
	confirms, releases := h.provider.counts()
	assert.Zero(t, confirms)
	assert.Zero(t, releases)
}

func TestRunBrowserCreateFailure(t *testing.T) {
	h := newHarness(t)
	h.service.createErr = fmt.Errorf("%w: /browser/update: window limit reached", browser.ErrRemote)

	res := h.worker().Run(context.Background(), 1, Options{AutoClose: true})

	assert.Equal(t, models.ResultFailed, res.Status)
	assert.Contains(t, res.Error, "window limit reached")
	assert.Zero(t, h.manager.Len())
	assert.Empty(t, h.driver.sessions)

	confirms, releases := h.provider.counts()
	assert.Zero(t, confirms)
	assert.Equal(t, 1, releases)
}

func TestRunVerificationTimeout(t *testing.T) {
	h := newHarness(t)
	h.provider.codes = nil
	mock := clock.NewMock()
	h.deps.Poller = &sms.Poller{
		Provider: h.provider,
		Interval: 5 * time.Second,
		Timeout:  120 * time.Second,
		Clock:    mock,
	}

	done := make(chan models.WorkerResult, 1)
	go func() {
		done <- h.worker().Run(context.Background(), 1, Options{AutoClose: true})
	}()

	var res models.WorkerResult
	for waiting := true; waiting; {
		select {
		case res = <-done:
			waiting = false
		default:
			mock.Add(5 * time.Second)
			time.Sleep(time.Millisecond)
		}
	}

	assert.Equal(t, models.ResultFailed, res.Status)
	assert.Contains(t, res.Error, "timeout")

	confirms, releases := h.provider.counts()
	assert.Zero(t, confirms)
	assert.Equal(t, 1, releases)

	require.Len(t, h.driver.sessions, 1)
	assert.Empty(t, h.driver.sessions[0].code)
	assert.True(t, h.driver.sessions[0].closed)
	assert.Equal(t, 1, h.service.closedCount())
}

func TestRunFlowFailureKeepsMessage(t *testing.T) {
	h := newHarness(t)
	h.driver.beginErr = errors.New("failed to fill nickname: element not found")

	res := h.worker().Run(context.Background(), 1, Options{AutoClose: true})

	assert.Equal(t, models.ResultFailed, res.Status)
	assert.Equal(t, "failed to fill nickname: element not found", res.Error)
	_, releases := h.provider.counts()
	assert.Equal(t, 1, releases)
	assert.Equal(t, 1, h.service.closedCount())
}

func TestRunCertificateUploadIsBestEffort(t *testing.T) {
	h := newHarness(t)
	root := t.TempDir()
	src := filepath.Join(root, "1", "1996.4.5.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0755))
	require.NoError(t, os.WriteFile(src, []byte("img"), 0644))

	a, err := assets.Load(assets.Dirs{Images: root, TempUploads: filepath.Join(root, "tmp")})
	require.NoError(t, err)
	h.deps.Assets = a
	h.driver.uploadErr = errors.New("uploader missing")

	res := h.worker().Run(context.Background(), 1, Options{AutoClose: true})

	require.Equal(t, models.ResultSuccess, res.Status, res.Error)
	assert.Equal(t, "1996-04-05", res.DOB)
	require.Len(t, h.driver.sessions, 1)
	s := h.driver.sessions[0]
	assert.True(t, s.uploadHit)
	assert.NotEqual(t, src, s.uploaded)
	_, statErr := os.Stat(s.uploaded)
	assert.True(t, os.IsNotExist(statErr), "staged copy must be removed")
}

func TestRunUsesProxy(t *testing.T) {
	h := newHarness(t)
	proxy := &models.ProxyConfig{Host: "10.0.0.1", Port: 1080}
	h.deps.Proxy = func(context.Context) (*models.ProxyConfig, error) { return proxy, nil }

	res := h.worker().Run(context.Background(), 1, Options{UseProxy: true, AutoClose: true})
	require.True(t, res.Succeeded(), res.Error)
	assert.Equal(t, []*models.ProxyConfig{proxy}, h.service.proxies)
}

func TestRunProxyFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.deps.Proxy = func(context.Context) (*models.ProxyConfig, error) {
		return nil, errors.New("failed to fetch dynamic proxy")
	}

	res := h.worker().Run(context.Background(), 1, Options{UseProxy: true, AutoClose: true})
	assert.Equal(t, models.ResultFailed, res.Status)
	assert.Contains(t, res.Error, "dynamic proxy")
	assert.Zero(t, h.manager.Len())
	_, releases := h.provider.counts()
	assert.Equal(t, 1, releases)
}

func TestProfileGenerators(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	p, cert, area := newProfile(rng, &assets.Assets{Names: []string{"さくら"}}, "09012345678")

	assert.Equal(t, "さくら", p.Nickname)
	assert.Equal(t, cert.DOB, p.DOB)
	assert.Equal(t, area.Code, p.RegionCode)
	name, ok := region.Name(p.RegionCode)
	require.True(t, ok)
	assert.Equal(t, area.Name, name)
	assert.Equal(t, "09012345678", p.Phone)
}
