package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"debt-dashboard/internal/alerting"
	"debt-dashboard/internal/config"
	"debt-dashboard/internal/dataset"
	"debt-dashboard/internal/logging"
	"debt-dashboard/internal/metrics"
	"debt-dashboard/internal/projection"
	"debt-dashboard/internal/scheduler"
	"debt-dashboard/internal/source"
	"debt-dashboard/internal/storage"
)

// ErrNotLoaded is returned before the first successful refresh.
var ErrNotLoaded = errors.New("service: dataset not loaded")

// Snapshot is one successfully derived dataset and where it came from.
type Snapshot struct {
	Dataset     dataset.Dataset
	Source      string
	Fingerprint string
	LoadedAt    time.Time
	Gaps        []int
	MemoHit     bool
}

// Service loads the dataset, keeps the current snapshot, projects views,
// and raises leverage alerts.
type Service struct {
	scheduler  *scheduler.Scheduler
	source     source.Source
	memo       *dataset.Memo
	metrics    *metrics.Collector
	alertStore storage.AlertStore
	notifier   alerting.Notifier
	logger     zerolog.Logger

	current   atomic.Pointer[Snapshot]
	refreshMu sync.Mutex

	alertsOn  bool
	threshold decimal.Decimal
	channels  []string
	locker    storage.AdvisoryLocker
	lockKey   int64

	alertMu  sync.Mutex
	notified map[int]bool
}

// New constructs the dashboard service. memo, sched, collector, alertStore
// and notifier are optional.
func New(cfg *config.Config, src source.Source, memo *dataset.Memo, sched *scheduler.Scheduler, collector *metrics.Collector, alertStore storage.AlertStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	threshold := decimal.Zero
	if cfg.Alerting.Enabled && cfg.Alerting.RatioThreshold > 0 {
		threshold = decimal.NewFromFloat(cfg.Alerting.RatioThreshold)
	}

	var locker storage.AdvisoryLocker
	if l, ok := alertStore.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:  sched,
		source:     src,
		memo:       memo,
		metrics:    collector,
		alertStore: alertStore,
		notifier:   notifier,
		logger:     logging.Component(logger, "service"),
		alertsOn:   cfg.Alerting.Enabled,
		threshold:  threshold,
		channels:   cfg.Alerting.Channels,
		locker:     locker,
		lockKey:    cfg.Alerting.AdvisoryLockKey,
		notified:   make(map[int]bool),
	}
}

// Run refreshes the dataset on every scheduler cycle until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, func(ctx context.Context, at time.Time, reason scheduler.Reason) error {
		_, err := s.Refresh(ctx)
		return err
	})
}

// RequestRefresh asks the scheduler for an immediate refresh cycle.
func (s *Service) RequestRefresh() bool {
	if s.scheduler == nil {
		return false
	}
	return s.scheduler.Trigger()
}

// Refresh reloads the source and swaps in the new snapshot. On failure the
// previous snapshot stays current.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	started := time.Now()
	raw, err := s.source.Load(ctx)
	if err != nil {
		s.metrics.ObserveRefresh(metrics.OutcomeError, 0)
		return Snapshot{}, fmt.Errorf("load %s: %w", s.source.Name(), err)
	}

	ds, hit, err := s.derive(raw)
	if err != nil {
		s.metrics.ObserveRefresh(metrics.OutcomeError, 0)
		return Snapshot{}, fmt.Errorf("derive %s: %w", s.source.Name(), err)
	}

	snap := &Snapshot{
		Dataset:     ds,
		Source:      s.source.Name(),
		Fingerprint: dataset.Fingerprint(raw),
		LoadedAt:    time.Now().UTC(),
		Gaps:        ds.Gaps(),
		MemoHit:     hit,
	}
	s.current.Store(snap)
	s.metrics.ObserveRefresh(metrics.OutcomeOK, ds.Len())

	min, max, _ := ds.YearSpan()
	s.logger.Info().
		Str("source", snap.Source).
		Int("rows", ds.Len()).
		Int("from", min).
		Int("to", max).
		Bool("memo_hit", hit).
		Dur("elapsed", time.Since(started)).
		Msg("dataset refreshed")
	if len(snap.Gaps) > 0 {
		s.logger.Warn().Ints("missing_years", snap.Gaps).Msg("dataset has year gaps; deltas and moving averages span them")
	}

	if _, err := s.CheckLeverage(ctx, ds); err != nil {
		s.logger.Error().Err(err).Msg("leverage alert failed")
	}
	return *snap, nil
}

func (s *Service) derive(raw []dataset.RawObservation) (dataset.Dataset, bool, error) {
	if s.memo == nil {
		ds, err := dataset.Derive(raw)
		return ds, false, err
	}
	return s.memo.Derive(raw)
}

// Snapshot returns the current snapshot.
func (s *Service) Snapshot() (Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return Snapshot{}, ErrNotLoaded
	}
	return *snap, nil
}

// Dataset returns the current derived dataset.
func (s *Service) Dataset() (dataset.Dataset, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return dataset.Dataset{}, err
	}
	return snap.Dataset, nil
}

// DefaultParams returns the initial control state for the current dataset.
func (s *Service) DefaultParams(view config.ViewConfig) (projection.Params, error) {
	ds, err := s.Dataset()
	if err != nil {
		return projection.Params{}, err
	}
	params := projection.DefaultParams(ds)
	params.MovingAverage = view.MovingAverage
	params.Annotations = view.Annotations
	if norm, err := projection.ParseNormalization(view.Normalization); err == nil {
		params.Normalization = norm
	}
	return params, nil
}

// Project clamps params to the current dataset and computes the view.
// Section failures are reported on the view, not as an error.
func (s *Service) Project(params projection.Params) (projection.View, error) {
	ds, err := s.Dataset()
	if err != nil {
		return projection.View{}, err
	}

	started := time.Now()
	view := projection.Project(ds, params.Clamp(ds))

	outcome := metrics.OutcomeOK
	switch {
	case view.Failed(projection.SectionFilter):
		outcome = metrics.OutcomeError
	case view.Err() != nil:
		outcome = metrics.OutcomePartial
	}
	s.metrics.ObserveProjection(outcome, time.Since(started))
	return view, nil
}

// RecentAlerts lists the most recent persisted leverage alerts. Without a
// store the list is empty.
func (s *Service) RecentAlerts(ctx context.Context, limit int) ([]storage.AlertRecord, error) {
	if s.alertStore == nil {
		return nil, nil
	}
	return s.alertStore.ListRecentAlerts(ctx, limit)
}

// CheckLeverage notifies when the latest Debt-to-GDP ratio is above the
// configured threshold. Each year is notified at most once per process.
func (s *Service) CheckLeverage(ctx context.Context, ds dataset.Dataset) (bool, error) {
	if !s.alertsOn || s.notifier == nil || s.threshold.IsZero() {
		return false, nil
	}

	kpi, err := projection.ComputeKPI(ds)
	if err != nil {
		return false, nil
	}
	if !kpi.DebtToGDP.GreaterThan(s.threshold) {
		return false, nil
	}

	s.alertMu.Lock()
	defer s.alertMu.Unlock()
	if s.notified[kpi.LatestYear] {
		return false, nil
	}

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return false, err
	}
	if !proceed {
		s.logger.Debug().Int("year", kpi.LatestYear).Msg("skip leverage alert because advisory lock held elsewhere")
		return false, nil
	}
	if unlock != nil {
		defer unlock()
	}

	direction := classifyChange(kpi.RatioDelta)
	if s.alertStore != nil {
		record := storage.AlertRecord{
			Year:      kpi.LatestYear,
			DebtToGDP: kpi.DebtToGDP,
			Threshold: s.threshold,
			Direction: direction,
			Channels:  s.channels,
		}
		if _, err := s.alertStore.InsertAlert(ctx, record); err != nil {
			s.logger.Error().Err(err).Int("year", kpi.LatestYear).Msg("failed to persist alert record")
		}
	}

	note := alerting.Notification{
		Year:       kpi.LatestYear,
		DebtToGDP:  kpi.DebtToGDP,
		Threshold:  s.threshold,
		RatioDelta: kpi.RatioDelta,
		TotalDebt:  kpi.TotalDebt,
		GDP:        kpi.GDP,
		Direction:  direction,
		Channels:   s.channels,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		return false, fmt.Errorf("dispatch leverage alert: %w", err)
	}
	s.notified[kpi.LatestYear] = true
	return true, nil
}

func classifyChange(d decimal.Decimal) string {
	switch d.Sign() {
	case 1:
		return "up"
	case -1:
		return "down"
	default:
		return "flat"
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
