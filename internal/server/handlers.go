package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"debt-dashboard/internal/dataset"
	"debt-dashboard/internal/narrative"
	"debt-dashboard/internal/projection"
	"debt-dashboard/internal/render"
	"debt-dashboard/internal/service"
)

const emptyRangeMessage = "select at least one year"

type healthResponse struct {
	Status   string    `json:"status"`
	Rows     int       `json:"rows"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
}

type datasetResponse struct {
	Source      string                `json:"source"`
	Fingerprint string                `json:"fingerprint"`
	LoadedAt    time.Time             `json:"loaded_at"`
	From        int                   `json:"from"`
	To          int                   `json:"to"`
	Gaps        []int                 `json:"gaps"`
	Rows        []dataset.Observation `json:"rows"`
}

type viewResponse struct {
	View      projection.View   `json:"view"`
	Dashboard render.Dashboard  `json:"dashboard"`
	Insights  []string          `json:"insights"`
	Failures  map[string]string `json:"failures,omitempty"`
}

type alertResponse struct {
	ID        int64     `json:"id"`
	Year      int       `json:"year"`
	DebtToGDP string    `json:"debt_to_gdp"`
	Threshold string    `json:"threshold"`
	Direction string    `json:"direction"`
	Channels  []string  `json:"channels"`
	CreatedAt time.Time `json:"created_at"`
}

type errorResponse struct {
	Error   string        `json:"error"`
	Partial *viewResponse `json:"partial,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	snap, err := s.dash.Snapshot()
	if err != nil {
		s.respondJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "loading"})
		return
	}
	s.respondJSON(w, http.StatusOK, healthResponse{Status: "ok", Rows: snap.Dataset.Len(), LoadedAt: snap.LoadedAt})
}

func (s *Server) datasetHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := s.dash.Snapshot()
	if err != nil {
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	from, to, _ := snap.Dataset.YearSpan()
	gaps := snap.Gaps
	if gaps == nil {
		gaps = []int{}
	}
	s.respondJSON(w, http.StatusOK, datasetResponse{
		Source:      snap.Source,
		Fingerprint: snap.Fingerprint,
		LoadedAt:    snap.LoadedAt,
		From:        from,
		To:          to,
		Gaps:        gaps,
		Rows:        snap.Dataset.Rows(),
	})
}

func (s *Server) viewHandler(w http.ResponseWriter, r *http.Request) {
	view, _, ok := s.projectRequest(w, r)
	if !ok {
		return
	}

	resp := viewResponse{
		View:      view,
		Dashboard: render.Build(view),
		Insights:  narrative.Insights(view),
	}
	if len(view.Failures) > 0 {
		resp.Failures = make(map[string]string, len(view.Failures))
		for section, err := range view.Failures {
			resp.Failures[string(section)] = err.Error()
		}
	}

	if view.Failed(projection.SectionFilter) {
		s.respondJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: emptyRangeMessage, Partial: &resp})
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) chartHandler(w http.ResponseWriter, r *http.Request) {
	kind := render.Kind(chi.URLParam(r, "kind"))
	if !supportsPNG(kind) {
		s.respondError(w, http.StatusNotFound, "no png chart named "+string(kind))
		return
	}

	view, q, ok := s.projectRequest(w, r)
	if !ok {
		return
	}
	width, height := s.cfg.ResolveChartSize(q.Width, q.Height)

	var buf bytes.Buffer
	if err := render.RenderPNG(&buf, kind, view, width, height); err != nil {
		switch {
		case errors.Is(err, projection.ErrEmptyRange):
			s.respondError(w, http.StatusUnprocessableEntity, emptyRangeMessage)
		case errors.Is(err, render.ErrTooFewPoints):
			s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			s.logger.Error().Err(err).Str("kind", string(kind)).Msg("render chart")
			s.respondError(w, http.StatusInternalServerError, "failed to render chart")
		}
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Debug().Err(err).Msg("write chart response")
	}
}

func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	queued := s.dash.RequestRefresh()
	s.respondJSON(w, http.StatusAccepted, map[string]bool{"queued": queued})
}

func (s *Server) alertsHandler(w http.ResponseWriter, r *http.Request) {
	q, err := parseAlertsQuery(r.URL.Query())
	if err == nil {
		err = s.validate.Struct(q)
	}
	if err != nil {
		s.respondError(w, http.StatusBadRequest, formatValidationError(err).Error())
		return
	}

	records, err := s.dash.RecentAlerts(r.Context(), q.Limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list alerts failed")
		s.respondError(w, http.StatusInternalServerError, "list alerts failed")
		return
	}

	out := make([]alertResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, alertResponse{
			ID:        rec.ID,
			Year:      rec.Year,
			DebtToGDP: rec.DebtToGDP.StringFixed(3),
			Threshold: rec.Threshold.StringFixed(3),
			Direction: rec.Direction,
			Channels:  rec.Channels,
			CreatedAt: rec.CreatedAt,
		})
	}
	s.respondJSON(w, http.StatusOK, out)
}

// projectRequest decodes the query and projects the view. It writes the
// error response itself and reports whether the caller should continue.
func (s *Server) projectRequest(w http.ResponseWriter, r *http.Request) (projection.View, viewQuery, bool) {
	q, err := parseViewQuery(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return projection.View{}, q, false
	}
	if err := s.validate.Struct(q); err != nil {
		s.respondError(w, http.StatusBadRequest, formatValidationError(err).Error())
		return projection.View{}, q, false
	}

	params, err := s.dash.DefaultParams(s.cfg.View)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return projection.View{}, q, false
	}

	view, err := s.dash.Project(q.apply(params))
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return projection.View{}, q, false
	}
	return view, q, true
}

func supportsPNG(kind render.Kind) bool {
	for _, k := range render.PNGKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func statusFor(err error) int {
	if errors.Is(err, service.ErrNotLoaded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}
