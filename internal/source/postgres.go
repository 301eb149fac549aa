package source

import (
	"context"
	"fmt"

	"debt-dashboard/internal/dataset"
	"debt-dashboard/internal/storage"
)

// Postgres reads observations persisted by the import command.
type Postgres struct {
	store storage.ObservationStore
}

// NewPostgres wraps an observation store.
func NewPostgres(store storage.ObservationStore) *Postgres {
	return &Postgres{store: store}
}

// Name implements Source.
func (p *Postgres) Name() string { return "postgres" }

// Load implements Source.
func (p *Postgres) Load(ctx context.Context) ([]dataset.RawObservation, error) {
	records, err := p.store.ListObservations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}
	out := make([]dataset.RawObservation, 0, len(records))
	for _, rec := range records {
		out = append(out, dataset.RawObservation{
			Year:         rec.Year,
			GDP:          rec.GDP,
			ExternalDebt: rec.ExternalDebt,
			DomesticDebt: rec.DomesticDebt,
		})
	}
	return out, nil
}

// ToRecords converts raw observations into storage records tagged with origin.
func ToRecords(raw []dataset.RawObservation, origin string) []storage.ObservationRecord {
	out := make([]storage.ObservationRecord, 0, len(raw))
	for _, r := range raw {
		out = append(out, storage.ObservationRecord{
			Year:         r.Year,
			GDP:          r.GDP,
			ExternalDebt: r.ExternalDebt,
			DomesticDebt: r.DomesticDebt,
			Source:       origin,
		})
	}
	return out
}

var _ Source = (*Postgres)(nil)
