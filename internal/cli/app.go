package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shehryarbajwa/regpool/internal/assets"
	"github.com/shehryarbajwa/regpool/internal/browser"
	"github.com/shehryarbajwa/regpool/internal/config"
	"github.com/shehryarbajwa/regpool/internal/flow"
	"github.com/shehryarbajwa/regpool/internal/logging"
	"github.com/shehryarbajwa/regpool/internal/sms"
	"github.com/shehryarbajwa/regpool/internal/store"
	"github.com/shehryarbajwa/regpool/internal/task"
	"github.com/shehryarbajwa/regpool/internal/worker"
	"github.com/shehryarbajwa/regpool/pkg/models"
)

// app is every long-lived component of a run or serve process
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	sink     logging.Sink
	sms      *sms.Client
	browsers *browser.Manager
	docker   *browser.DockerService
	driver   *flow.Playwright
	db       *store.DB
	orch     *task.Orchestrator
}

func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Paths.Logs)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

// newApp wires the registration stack from cfg
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, sink: logging.NewZapSink(logger)}

	smsClient, err := sms.NewClient(cfg.SMS.BaseURL, cfg.SMS.Token, cfg.SMS.ItemID)
	if err != nil {
		return nil, err
	}
	a.sms = smsClient

	var service browser.Service
	if cfg.Docker.Enabled {
		docker, err := browser.NewDockerService(cfg.Docker.Image)
		if err != nil {
			return nil, err
		}
		if err := docker.EnsureImage(ctx); err != nil {
			docker.Shutdown()
			return nil, fmt.Errorf("failed to ensure browser image: %w", err)
		}
		a.docker = docker
		service = docker
		logger.Info("browser backend ready", zap.String("backend", "docker"), zap.String("image", cfg.Docker.Image))
	} else {
		service = browser.NewBitBrowser(cfg.BitBrowser.APIBase, cfg.BitBrowser.Timeout.Duration)
		logger.Info("browser backend ready", zap.String("backend", "bitbrowser"), zap.String("api", cfg.BitBrowser.APIBase))
	}
	a.browsers = browser.NewManager(service, a.sink)

	refs, err := assets.Load(assets.Dirs{
		Names:       cfg.Paths.Names,
		Avatars:     cfg.Paths.Avatars,
		Images:      cfg.Paths.Images,
		TempUploads: cfg.Paths.TempUploads,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	logger.Info("reference data loaded",
		zap.Int("names", len(refs.Names)),
		zap.Int("avatars", len(refs.Avatars)),
		zap.Int("certificates", len(refs.Certificates)))

	driver, err := flow.NewPlaywright(flow.Site{
		TopURL:         cfg.Site.TopURL,
		EntryURL:       cfg.Site.EntryURL,
		CertificateURL: cfg.Site.CertificateURL,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.driver = driver

	db, err := store.Open(cfg.Paths.DB)
	if err != nil {
		a.close()
		return nil, err
	}
	a.db = db

	poller := sms.NewPoller(smsClient, cfg.SMS.PollInterval.Duration, cfg.SMS.PollTimeout.Duration)
	w := worker.New(worker.Deps{
		SMS:      smsClient,
		Poller:   poller,
		Browsers: a.browsers,
		Driver:   driver,
		Assets:   refs,
		Proxy: func(ctx context.Context) (*models.ProxyConfig, error) {
			return browser.FetchProxy(ctx, cfg.Proxy.SourceURL)
		},
		Log: a.sink,
	})

	a.orch = task.New(func(ctx context.Context, idx int, opts models.RunOptions) models.WorkerResult {
		return w.Run(ctx, idx, worker.Options{UseProxy: opts.UseProxy, AutoClose: opts.AutoClose})
	}, cfg.Run.Stagger.Duration, a.sink)

	return a, nil
}

// close releases process resources. Windows left for a human stay open.
func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Debug("closing database failed", zap.Error(err))
		}
	}
	if a.driver != nil {
		if err := a.driver.Stop(); err != nil {
			a.logger.Debug("stopping playwright failed", zap.Error(err))
		}
	}
	if a.docker != nil {
		if err := a.docker.Shutdown(); err != nil {
			a.logger.Debug("closing docker client failed", zap.Error(err))
		}
	}
	a.logger.Sync()
}

func (a *app) runDefaults() models.RunOptions {
	return models.RunOptions{
		Count:       a.cfg.Run.Count,
		Concurrency: a.cfg.Run.Concurrency,
		UseProxy:    a.cfg.Run.UseProxy,
		AutoClose:   a.cfg.Run.AutoClose,
	}
}
