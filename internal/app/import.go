package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"debt-dashboard/internal/dataset"
	"debt-dashboard/internal/projection"
	"debt-dashboard/internal/source"
)

// Import loads observations from a file or HTTP source and upserts them into
// postgres. Rows are validated through derivation before anything is written.
func (a *App) Import(ctx context.Context, opts ImportOptions) error {
	cfg := a.Config.Source
	if opts.Kind != "" {
		cfg.Kind = opts.Kind
	}
	if opts.Path != "" {
		cfg.Path = opts.Path
	}
	if opts.URL != "" {
		cfg.URL = opts.URL
	}
	if strings.EqualFold(cfg.Kind, "postgres") {
		return errors.New("import source cannot be postgres; choose static, csv or http")
	}

	src, err := a.newSource(cfg, nil)
	if err != nil {
		return err
	}

	raw, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", src.Name(), err)
	}
	ds, err := dataset.Derive(raw)
	if err != nil {
		return fmt.Errorf("validate %s: %w", src.Name(), err)
	}

	min, max, _ := ds.YearSpan()
	logger := a.Logger.With().Str("source", src.Name()).Int("rows", ds.Len()).Int("from", min).Int("to", max).Logger()
	if gaps := ds.Gaps(); len(gaps) > 0 {
		logger.Warn().Ints("missing_years", gaps).Msg("import has year gaps")
	}

	if opts.DryRun {
		logger.Warn().Msg("import dry-run: nothing written")
		return writeViewTable(a.Out, projectAll(ds))
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; cannot import")
	}
	defer closeStore()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	written, err := store.UpsertObservations(ctx, source.ToRecords(raw, src.Name()))
	if err != nil {
		return err
	}
	total, err := store.CountObservations(ctx)
	if err != nil {
		return err
	}

	logger.Info().Int("written", written).Int64("stored", total).Msg("import complete")
	return nil
}

func projectAll(ds dataset.Dataset) projection.View {
	return projection.Project(ds, projection.DefaultParams(ds))
}
