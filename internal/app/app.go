package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"hawkmon/internal/alerts"
	"hawkmon/internal/collector"
	"hawkmon/internal/config"
	"hawkmon/internal/db"
	"hawkmon/internal/docker"
	"hawkmon/internal/metrics"
	"hawkmon/internal/models"
	"hawkmon/internal/notifier"
	"hawkmon/internal/retention"
	"hawkmon/internal/scheduler"
	"hawkmon/internal/web"
)

const retentionEvery = 6 * time.Hour

// Sampler produces one snapshot per pass.
type Sampler interface {
	Init(ctx context.Context) error
	Sample(ctx context.Context) (models.Snapshot, error)
}

type App struct {
	cfgPath string
	cfgMu   sync.Mutex
	cfg     config.Config
	log     *slog.Logger

	db         *db.Repository
	sampler    Sampler
	host       *collector.HostSampler
	engine     *alerts.Engine
	dispatcher *notifier.Dispatcher
	sched      *scheduler.Scheduler
	retention  *retention.Service
	web        *web.Server

	httpSrv *http.Server
}

// New opens storage and wires every component. cfgPath may be empty, in which
// case the configuration is not watched for changes.
func New(cfg config.Config, cfgPath string, logger *slog.Logger) (*App, error) {
	sqldb, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(sqldb); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	repo := db.NewRepository(sqldb)

	var containers collector.ContainerSource
	if cfg.ContainersEnabled() {
		containers = docker.NewClient(cfg.DockerSocket)
	}
	host := collector.NewHostSampler(containers, cfg.Interval, logger.With("module", "collector"))

	tg := Telegram(cfg, repo, logger)
	senders := []notifier.Sender{Email(cfg), tg, notifier.NewWebhook(cfg.Webhook.URL, cfg.Webhook.Type)}
	dispatcher := notifier.NewDispatcher(senders, repo, logger.With("module", "notifier"))
	engine := alerts.NewEngine(cfg.Thresholds(), dispatcher, repo, logger.With("module", "alerts"))
	w := web.NewServer(repo, engine, dispatcher, tg, cfg.Interval, logger.With("module", "web"))

	a := &App{
		cfgPath:    cfgPath,
		cfg:        cfg,
		log:        logger,
		db:         repo,
		sampler:    host,
		host:       host,
		engine:     engine,
		dispatcher: dispatcher,
		retention:  retention.NewService(repo, cfg.RetentionDays, logger.With("module", "retention")),
		web:        w,
	}
	a.sched = scheduler.New(a.pass, logger.With("module", "scheduler"))
	a.httpSrv = &http.Server{Addr: cfg.Addr, Handler: w.Routes(), ReadHeaderTimeout: 10 * time.Second}
	return a, nil
}

// Email builds the SMTP sender from cfg.
func Email(cfg config.Config) *notifier.Email {
	return &notifier.Email{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Secure:   cfg.SMTP.Secure,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		To:       cfg.SMTP.To,
	}
}

// Telegram builds the Telegram sender; credentials saved through the settings
// API take precedence over cfg. repo may be nil.
func Telegram(cfg config.Config, repo *db.Repository, logger *slog.Logger) *notifier.Telegram {
	token, chatID := cfg.Telegram.BotToken, cfg.Telegram.ChatID
	if repo != nil {
		t, c, err := repo.LoadTelegramSettings(context.Background())
		if err != nil {
			logger.Warn("load telegram settings", "err", err)
		} else if t != "" && c != "" {
			token, chatID = t, c
		}
	}
	return notifier.NewTelegram(token, chatID)
}

func (a *App) Run(ctx context.Context) error {
	if err := a.start(ctx); err != nil {
		_ = a.db.DB().Close()
		return err
	}
	if a.host != nil {
		if info, err := a.host.HostInfo(ctx); err == nil {
			a.log.Info("monitoring host", "hostname", info.Hostname, "platform", info.Platform, "kernel", info.Kernel, "interfaces", len(info.Interfaces))
		}
	}

	addr, interval := a.cfg.Addr, a.cfg.Interval
	go func() {
		a.log.Info("http server listening", "addr", addr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server failed", "err", err)
		}
	}()
	if a.cfgPath != "" {
		go func() {
			if err := config.Watch(ctx, a.cfgPath, a.log.With("module", "config"), a.reload); err != nil {
				a.log.Error("config watch failed", "path", a.cfgPath, "err", err)
			}
		}()
	}

	passTicker := time.NewTicker(interval)
	retentionTicker := time.NewTicker(retentionEvery)
	defer passTicker.Stop()
	defer retentionTicker.Stop()

	a.retention.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return a.shutdown()
		case <-passTicker.C:
			a.sched.Tick(ctx)
		case <-retentionTicker.C:
			a.retention.Run(ctx)
		}
	}
}

// start initializes sampling and runs the first pass synchronously. Either
// failing is fatal.
func (a *App) start(ctx context.Context) error {
	if err := a.sampler.Init(ctx); err != nil {
		return fmt.Errorf("init sampler: %w", err)
	}
	if err := a.runPass(ctx); errors.Is(err, collector.ErrNoReadings) {
		return fmt.Errorf("first sample: %w", err)
	}
	return nil
}

func (a *App) pass(ctx context.Context) {
	_ = a.runPass(ctx)
}

// runPass samples once and evaluates the snapshot. A snapshot with no readings
// at all is not evaluated, so the published last pass time goes stale.
func (a *App) runPass(ctx context.Context) error {
	start := time.Now()
	snap, err := a.sampler.Sample(ctx)
	if err != nil {
		if errors.Is(err, collector.ErrNoReadings) {
			a.log.Error("sample failed", "err", err)
			return err
		}
		a.log.Warn("partial sample", "err", err)
	}
	events := a.engine.Evaluate(ctx, snap)
	metrics.PassesTotal.Inc()
	metrics.PassDuration.Observe(time.Since(start).Seconds())
	a.log.Debug("pass completed", "events", len(events), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (a *App) reload(next config.Config) {
	a.cfgMu.Lock()
	merged, ignored := config.ApplyReload(a.cfg, next)
	a.cfg = merged
	a.cfgMu.Unlock()
	a.engine.SetThresholds(merged.Thresholds())
	if len(ignored) > 0 {
		a.log.Warn("config changes need a restart", "settings", ignored)
	}
	a.log.Info("thresholds updated")
}

func (a *App) shutdown() error {
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(sctx); err != nil {
		a.log.Warn("http shutdown", "err", err)
	}
	a.sched.Wait()
	a.dispatcher.Wait()
	a.log.Info("stopped")
	return a.db.DB().Close()
}
