// Package worker runs one registration attempt end to end
package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shehryarbajwa/regpool/internal/assets"
	"github.com/shehryarbajwa/regpool/internal/browser"
	"github.com/shehryarbajwa/regpool/internal/flow"
	"github.com/shehryarbajwa/regpool/internal/logging"
	"github.com/shehryarbajwa/regpool/internal/sms"
	"github.com/shehryarbajwa/regpool/pkg/models"
)

// browserName is the window name shown in the BitBrowser list
const browserName = "android_worker"

// ProxySource hands out one egress proxy per attempt
type ProxySource func(ctx context.Context) (*models.ProxyConfig, error)

// Options are the per-run switches of an attempt
type Options struct {
	UseProxy  bool
	AutoClose bool
}

// Deps are the collaborators shared by every attempt of a run
type Deps struct {
	SMS      sms.Provider
	Poller   *sms.Poller
	Browsers *browser.Manager
	Driver   flow.Driver
	Assets   *assets.Assets
	Proxy    ProxySource
	Log      logging.Sink
}

// Worker runs registration attempts. It holds no per-attempt state and is
// safe for concurrent use.
type Worker struct {
	deps    Deps
	now     func() time.Time
	newRand func() *rand.Rand
}

// New creates a worker
func New(deps Deps) *Worker {
	if deps.Log == nil {
		deps.Log = logging.Discard
	}
	if deps.Assets == nil {
		deps.Assets = &assets.Assets{}
	}
	if deps.Poller == nil {
		deps.Poller = sms.NewPoller(deps.SMS, 0, 0)
	}
	return &Worker{
		deps: deps,
		now:  time.Now,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
}

// attempt carries the resources one Run has to clean up
type attempt struct {
	log     logging.Scoped
	rng     *rand.Rand
	lease   *sms.Lease
	session flow.Session
	result  *models.WorkerResult
}

// Run performs one attempt and always returns exactly one result. Errors
// never escape; they are recorded in the result. The lease and the browser
// window are settled on every exit path.
func (w *Worker) Run(ctx context.Context, idx int, opts Options) models.WorkerResult {
	result := models.WorkerResult{
		Index:     idx,
		Status:    models.ResultFailed,
		StartedAt: w.now(),
	}
	a := &attempt{
		log:    logging.ForWorker(w.deps.Log, idx),
		rng:    w.newRand(),
		result: &result,
	}
	a.log.Info("start", "worker started")

	func() {
		defer w.cleanup(ctx, a, opts)
		if err := w.register(ctx, a, opts); err != nil {
			result.Status = models.ResultFailed
			result.Error = err.Error()
			a.log.Error("task_crash", "attempt failed: %v", err)
		}
	}()

	result.FinishedAt = w.now()
	return result
}

func (w *Worker) register(ctx context.Context, a *attempt, opts Options) error {
	res := a.result

	lease, err := w.deps.SMS.Acquire(ctx)
	if err != nil {
		return err
	}
	a.lease = lease
	res.Phone = lease.Phone
	a.log.Info("get_phone", "leased number %s", lease.Phone)

	profile, cert, area := newProfile(a.rng, w.deps.Assets, lease.Phone)
	res.Password = profile.Password
	res.Nickname = profile.Nickname
	res.Email = profile.Email
	res.DOB = profile.DOB
	res.Region = area.Name
	a.log.Info("gen_data", "profile %s | %s | certificate %s", profile.Nickname, profile.DOB, certLabel(cert))

	instance, err := w.openBrowser(ctx, a, opts, lease.Phone)
	if err != nil {
		return err
	}

	session, err := w.deps.Driver.Open(ctx, instance.Endpoint, a.log)
	if err != nil {
		return err
	}
	a.session = session

	if err := session.Begin(ctx, profile); err != nil {
		return err
	}

	a.log.Info("sms_wait", "waiting for verification code")
	code, err := w.deps.Poller.Wait(ctx, lease.PKey)
	if err != nil {
		return err
	}
	a.log.Success("sms_get", "verification code %s received", code)

	if err := session.SubmitCode(ctx, code); err != nil {
		return err
	}

	w.uploadCertificate(ctx, a, cert)

	res.Status = models.ResultSuccess
	if _, err := lease.Confirm(ctx, w.deps.SMS, sms.RemarkSuccess); err != nil {
		a.log.Warn("sms_confirm", "confirming number failed: %v", err)
	}
	a.log.Success("task_finish", "registration finished")
	return nil
}

// openBrowser creates a fresh window owned by account and leases it
func (w *Worker) openBrowser(ctx context.Context, a *attempt, opts Options, account string) (models.BrowserInstance, error) {
	req := models.CreateBrowserRequest{Name: browserName}
	if opts.UseProxy {
		if w.deps.Proxy == nil {
			return models.BrowserInstance{}, errors.New("proxy requested but no proxy source is configured")
		}
		proxy, err := w.deps.Proxy(ctx)
		if err != nil {
			return models.BrowserInstance{}, err
		}
		req.Proxy = proxy
	}

	created, err := w.deps.Browsers.Create(ctx, account, req)
	if err != nil {
		return models.BrowserInstance{}, err
	}
	a.result.BrowserID = created.BrowserID

	instance, ok := w.deps.Browsers.Acquire(account)
	if !ok || instance.BrowserID != created.BrowserID {
		if ok {
			w.deps.Browsers.Release(instance.BrowserID)
		}
		return models.BrowserInstance{}, fmt.Errorf("browser %s is not available", created.BrowserID)
	}
	a.log.Info("browser_start", "browser started (ID: %s)", instance.BrowserID)

	if detail, err := w.deps.Browsers.Detail(ctx, instance.BrowserID); err != nil {
		a.log.Warn("window_seq", "window sequence lookup failed: %v", err)
	} else {
		a.result.WindowSeq = detail.Seq
		a.log.Info("window_seq", "window sequence %d", detail.Seq)
		if err := w.deps.Browsers.Arrange(ctx, detail.Seq); err != nil {
			a.log.Debug("window_seq", "arranging windows failed: %v", err)
		}
	}
	return instance, nil
}

// uploadCertificate never fails the attempt
func (w *Worker) uploadCertificate(ctx context.Context, a *attempt, cert assets.Certificate) {
	if cert.Path == "" {
		return
	}

	staged, remove, err := w.deps.Assets.Stage(cert.Path, a.rng)
	if err != nil {
		a.log.Error("cert_upload", "staging certificate failed: %v", err)
		return
	}
	defer remove()

	a.log.Info("cert_upload", "uploading certificate %s", staged)
	if err := a.session.UploadCertificate(ctx, staged); err != nil {
		a.log.Error("cert_upload", "certificate upload failed: %v", err)
		return
	}
	a.log.Success("cert_finish", "certificate uploaded")
}

func (w *Worker) cleanup(ctx context.Context, a *attempt, opts Options) {
	ctx = context.WithoutCancel(ctx)

	if a.session != nil {
		a.session.Close()
	}

	if a.lease != nil && !a.lease.Settled() {
		if _, err := a.lease.Release(ctx, w.deps.SMS); err != nil {
			a.log.Debug("release_phone", "releasing number failed: %v", err)
		}
	}

	id := a.result.BrowserID
	if id == "" {
		return
	}
	if opts.AutoClose {
		a.log.Info("close", "closing window")
		w.deps.Browsers.Close(ctx, id)
		return
	}
	w.deps.Browsers.MarkWaitHuman(id)
	a.log.Info("close", "window kept for manual inspection")
}

func certLabel(c assets.Certificate) string {
	switch c.Kind {
	case assets.CertHealthInsurance:
		return "health insurance card"
	case assets.CertDriverLicence:
		return "driver licence"
	}
	return "none"
}
