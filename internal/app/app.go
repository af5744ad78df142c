package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hackmd-go/internal/config"
	"hackmd-go/internal/mirror"
	"hackmd-go/internal/notify"
	"hackmd-go/internal/platform/logger"
	"hackmd-go/internal/platform/pg"
	"hackmd-go/internal/scheduler"
	"hackmd-go/pkg/hackmd"
)

// notifyWindow suppresses repeats of the same failure message.
const notifyWindow = 30 * time.Minute

// App wires application components.
type App struct {
	cfg        config.Config
	log        *slog.Logger
	clientOpts []hackmd.Option
	notifier   notify.Notifier

	mu     sync.Mutex
	client *hackmd.Client
}

// New loads configuration and creates the logger.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          "hackmd",
	})
	return NewWithConfig(cfg, log), nil
}

// Option customizes an App.
type Option func(*App)

// WithClientOptions appends HackMD client options after the configured ones.
func WithClientOptions(opts ...hackmd.Option) Option {
	return func(a *App) { a.clientOpts = append(a.clientOpts, opts...) }
}

// WithNotifier replaces the notifier built from configuration.
func WithNotifier(n notify.Notifier) Option {
	return func(a *App) { a.notifier = n }
}

// NewWithConfig creates an App from ready configuration.
func NewWithConfig(cfg config.Config, log *slog.Logger, opts ...Option) *App {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{cfg: cfg, log: log}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.log }

// Client returns the HackMD client, creating it on first use.
func (a *App) Client() (*hackmd.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil {
		return a.client, nil
	}

	h := a.cfg.HackMD
	opts := []hackmd.Option{
		hackmd.WithBaseURL(h.Endpoint),
		hackmd.WithTimeout(h.Timeout),
		hackmd.WithOverallTimeout(h.OverallTimeout),
		hackmd.WithRetry(h.MaxAttempts, h.RetryBaseDelay),
		hackmd.WithWrapResponseErrors(h.WrapErrors),
		hackmd.WithLogger(a.log.With("component", "hackmd")),
	}
	c, err := hackmd.New(h.Token, append(opts, a.clientOpts...)...)
	if err != nil {
		return nil, err
	}
	a.client = c
	return c, nil
}

// OpenStore opens the configured mirror store.
func (a *App) OpenStore(ctx context.Context) (mirror.Store, error) {
	m := a.cfg.Mirror
	a.log.Debug("opening mirror", slog.String("driver", m.Driver), slog.String("target", pg.RedactDSN(m.DSN)))
	return mirror.Open(ctx, m.Driver, m.DSN)
}

// Notifier returns the Telegram notifier when configured, otherwise Nop.
func (a *App) Notifier() (notify.Notifier, error) {
	if a.notifier != nil {
		return a.notifier, nil
	}
	t := a.cfg.Telegram
	if t.Token == "" {
		return notify.Nop{}, nil
	}
	tg, err := notify.NewTelegram(t.Token, t.ChatID)
	if err != nil {
		return nil, err
	}
	return notify.NewThrottled(tg, notifyWindow), nil
}

// SyncOnce runs one mirror sync and reports a failure to the notifier.
func (a *App) SyncOnce(ctx context.Context) (mirror.Run, error) {
	job, closeFn, err := a.syncJob(ctx)
	if err != nil {
		return mirror.Run{}, err
	}
	defer closeFn()
	return job(ctx)
}

// RunSync syncs immediately and then on the configured schedule until ctx
// is canceled.
func (a *App) RunSync(ctx context.Context) error {
	job, closeFn, err := a.syncJob(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	overlap, err := scheduler.ParseOverlapPolicy(a.cfg.Sync.Overlap)
	if err != nil {
		return err
	}

	s := scheduler.NewWithContext(ctx, scheduler.Config{Logger: a.log.With("component", "scheduler")})
	run := func(ctx context.Context) error {
		_, err := job(ctx)
		return err
	}
	if _, err := s.AddJob(a.cfg.Sync.Schedule, run, scheduler.JobOptions{
		Name:          "mirror-sync",
		Timeout:       a.cfg.Sync.Timeout,
		OverlapPolicy: overlap,
	}); err != nil {
		return fmt.Errorf("schedule sync: %w", err)
	}

	first, cancel := context.WithTimeout(ctx, a.cfg.Sync.Timeout)
	if err := run(first); err != nil {
		// Already recorded as a failed run and sent to the notifier.
		a.log.Warn("initial sync failed", slog.Any("error", err))
	}
	cancel()

	s.Start()
	a.log.Info("sync scheduled", slog.String("schedule", a.cfg.Sync.Schedule))
	<-ctx.Done()

	stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	return s.StopContext(stopCtx)
}

// Close releases idle client connections and the log file.
func (a *App) Close() error {
	a.mu.Lock()
	c := a.client
	a.mu.Unlock()
	if c != nil {
		_ = c.Close()
	}
	return logger.Close(a.log)
}

type syncFunc func(ctx context.Context) (mirror.Run, error)

func (a *App) syncJob(ctx context.Context) (syncFunc, func(), error) {
	client, err := a.Client()
	if err != nil {
		return nil, nil, err
	}
	notifier, err := a.Notifier()
	if err != nil {
		return nil, nil, err
	}
	store, err := a.OpenStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	syncer := mirror.NewSyncer(client, store, a.log.With("component", "mirror"))

	job := func(ctx context.Context) (mirror.Run, error) {
		run, err := syncer.Run(ctx)
		if err != nil {
			msg := fmt.Sprintf("hackmd sync failed (%s): %s", run.ErrorKind, run.Message)
			if nerr := notifier.Notify(context.WithoutCancel(ctx), msg); nerr != nil {
				a.log.Warn("notify", slog.Any("error", nerr))
			}
		}
		return run, err
	}
	closeFn := func() {
		if err := store.Close(); err != nil {
			a.log.Warn("close mirror store", slog.Any("error", err))
		}
	}
	return job, closeFn, nil
}
