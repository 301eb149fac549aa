package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"debt-dashboard/internal/alerting"
	"debt-dashboard/internal/config"
	"debt-dashboard/internal/dataset"
	"debt-dashboard/internal/logging"
	"debt-dashboard/internal/metrics"
	"debt-dashboard/internal/projection"
	"debt-dashboard/internal/scheduler"
	"debt-dashboard/internal/server"
	"debt-dashboard/internal/service"
	"debt-dashboard/internal/source"
	"debt-dashboard/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logging.Component(logger, "app"), Out: os.Stdout}
}

// newNotifier builds the configured alert channels. It returns nil when no
// channel is usable.
func (a *App) newNotifier() alerting.Notifier {
	var notifiers alerting.Multi
	for _, ch := range a.Config.Alerting.Channels {
		switch strings.ToLower(strings.TrimSpace(ch)) {
		case "telegram":
			cfg := a.Config.Alerting.Telegram
			if !cfg.Enabled {
				a.Logger.Warn().Msg("telegram channel listed but alerting.telegram.enabled is false")
				continue
			}
			notifiers = append(notifiers, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger))
		case "log":
			notifiers = append(notifiers, alerting.NewLogNotifier(a.Logger))
		default:
			a.Logger.Warn().Str("channel", ch).Msg("unknown alert channel ignored")
		}
	}
	if len(notifiers) == 0 {
		return nil
	}
	return notifiers
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	store, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// newSource selects the configured source. store may be nil.
func (a *App) newSource(cfg config.SourceConfig, store *storage.Store) (source.Source, error) {
	var observations storage.ObservationStore
	if store != nil {
		observations = store
	}
	return source.New(cfg, observations, a.Logger)
}

// loadService builds a one-shot service over the configured source and
// performs the initial refresh. Alerts are never sent from it.
func (a *App) loadService(ctx context.Context) (*service.Service, func(), error) {
	var store *storage.Store
	closeStore := func() {}
	if strings.EqualFold(a.Config.Source.Kind, "postgres") {
		s, closer, err := a.openStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		if s == nil {
			return nil, nil, errors.New("database.dsn not configured; cannot read postgres source")
		}
		store, closeStore = s, closer
	}

	src, err := a.newSource(a.Config.Source, store)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	svc := service.New(a.Config, src, nil, nil, nil, nil, nil, a.Logger)
	if _, err := svc.Refresh(ctx); err != nil {
		closeStore()
		return nil, nil, err
	}
	return svc, closeStore, nil
}

// ViewOptions override the configured initial control state.
type ViewOptions struct {
	From          *int
	To            *int
	MovingAverage *bool
	Normalization string
	Annotations   *bool
}

func (a *App) projectView(ctx context.Context, opts ViewOptions) (projection.View, error) {
	svc, closeStore, err := a.loadService(ctx)
	if err != nil {
		return projection.View{}, err
	}
	defer closeStore()

	params, err := svc.DefaultParams(a.Config.View)
	if err != nil {
		return projection.View{}, err
	}
	if opts.From != nil {
		params.YearRange.Min = *opts.From
	}
	if opts.To != nil {
		params.YearRange.Max = *opts.To
	}
	if opts.MovingAverage != nil {
		params.MovingAverage = *opts.MovingAverage
	}
	if opts.Annotations != nil {
		params.Annotations = *opts.Annotations
	}
	if opts.Normalization != "" {
		norm, err := projection.ParseNormalization(opts.Normalization)
		if err != nil {
			return projection.View{}, err
		}
		params.Normalization = norm
	}

	view, err := svc.Project(params)
	if err != nil {
		return projection.View{}, err
	}
	if view.Failed(projection.SectionFilter) {
		return view, fmt.Errorf("select at least one year: %w", view.Failures[projection.SectionFilter])
	}
	return view, nil
}

// Serve runs the dashboard HTTP server with periodic refresh.
func (a *App) Serve(ctx context.Context, opts ServeOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.Addr != "" {
		a.Config.Server.Addr = opts.Addr
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; alert persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	src, err := a.newSource(a.Config.Source, store)
	if err != nil {
		return err
	}

	memo, err := dataset.NewMemo(a.Config.Source.MemoSize)
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Interval:        a.Config.Refresh.Interval,
		AlignToInterval: a.Config.Refresh.AlignToBucket,
		StartupDelay:    a.Config.Refresh.StartupDelay,
	}, a.Logger)

	collector := metrics.NewCollector("debtdash")

	var alertStore storage.AlertStore
	if store != nil {
		alertStore = store
	}

	svc := service.New(a.Config, src, memo, sched, collector, alertStore, a.newNotifier(), a.Logger)
	if _, err := svc.Refresh(ctx); err != nil {
		a.Logger.Error().Err(err).Str("source", src.Name()).Msg("initial dataset load failed; serving once a refresh succeeds")
	}

	refreshDone := make(chan error, 1)
	go func() {
		refreshDone <- svc.Run(ctx)
	}()

	a.Logger.Info().Str("source", src.Name()).Dur("refresh_interval", a.Config.Refresh.Interval).Msg("starting dashboard server")
	srv := server.New(a.Config, svc, collector, a.Logger)
	err = srv.Run(ctx)
	cancel()
	<-refreshDone

	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("dashboard server terminated with error")
		return err
	}

	a.Logger.Info().Msg("dashboard server stopped")
	return nil
}

// ServeOptions configure the serve command.
type ServeOptions struct {
	Addr string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	View ViewOptions
}

// ExportOptions hold parameters for exporting a projected view.
type ExportOptions struct {
	View    ViewOptions
	CSVPath string
	PNGDir  string
	Width   int
	Height  int
}

// ImportOptions configure the import job.
type ImportOptions struct {
	Kind   string
	Path   string
	URL    string
	DryRun bool
}
