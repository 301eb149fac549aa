package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"debt-dashboard/internal/config"
	"debt-dashboard/internal/dataset"
	"debt-dashboard/internal/storage"
)

// ErrUnknownKind indicates an unsupported source.kind.
var ErrUnknownKind = errors.New("source: unknown kind")

// Source yields raw observations for derivation.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]dataset.RawObservation, error)
}

// New selects a source implementation from configuration. store may be nil
// unless the kind is postgres.
func New(cfg config.SourceConfig, store storage.ObservationStore, logger zerolog.Logger) (Source, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", "static":
		return Static{}, nil
	case "csv":
		return NewCSVFile(cfg.Path), nil
	case "http":
		return NewHTTP(HTTPOptions{
			URL:       cfg.URL,
			Timeout:   cfg.Timeout,
			UserAgent: cfg.UserAgent,
		}, logger), nil
	case "postgres":
		if store == nil {
			return nil, fmt.Errorf("postgres source: %w", storage.ErrNotConfigured)
		}
		return NewPostgres(store), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

// Static serves the builtin illustrative table.
type Static struct{}

// Name implements Source.
func (Static) Name() string { return "static" }

// Load implements Source.
func (Static) Load(ctx context.Context) ([]dataset.RawObservation, error) {
	return dataset.Builtin(), nil
}

var _ Source = Static{}
