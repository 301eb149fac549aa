package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"debt-dashboard/internal/dataset"
)

const maxErrorBody = 512

// HTTPOptions parameterise the HTTP JSON source.
type HTTPOptions struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// HTTP fetches observations from a JSON endpoint. The body is either an array
// of rows or an object with an "observations" array.
type HTTP struct {
	opts   HTTPOptions
	logger zerolog.Logger
	client *http.Client
}

// NewHTTP constructs an HTTP source.
func NewHTTP(opts HTTPOptions, logger zerolog.Logger) *HTTP {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTP{
		opts:   opts,
		logger: logger.With().Str("component", "http_source").Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

// Name implements Source.
func (h *HTTP) Name() string { return "http:" + h.opts.URL }

// Load implements Source.
func (h *HTTP) Load(ctx context.Context) ([]dataset.RawObservation, error) {
	if h.opts.URL == "" {
		return nil, errors.New("http source url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.opts.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "debtdash/1.0")
	}

	started := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch observations: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read observations: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	rows, err := decodeObservations(payload)
	if err != nil {
		return nil, err
	}

	h.logger.Debug().
		Int("rows", len(rows)).
		Dur("elapsed", time.Since(started)).
		Msg("observations fetched")
	return rows, nil
}

type observationsEnvelope struct {
	Observations []dataset.RawObservation `json:"observations"`
}

func decodeObservations(payload []byte) ([]dataset.RawObservation, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, errors.New("observations response is empty")
	}

	if trimmed[0] == '[' {
		var rows []dataset.RawObservation
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("decode observations: %w", err)
		}
		return rows, nil
	}

	var env observationsEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode observations: %w", err)
	}
	return env.Observations, nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Error != "" {
			return fmt.Errorf("observations api error (%d): %s", status, apiErr.Error)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("observations api error (%d): %s", status, apiErr.Message)
		}
	}
	if len(payload) > 0 {
		body := strings.TrimSpace(string(payload))
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return fmt.Errorf("observations api error (%d): %s", status, body)
	}
	return fmt.Errorf("observations api error (%d)", status)
}

var _ Source = (*HTTP)(nil)
