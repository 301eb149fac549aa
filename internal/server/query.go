package server

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"debt-dashboard/internal/projection"
)

const defaultAlertsLimit = 20

// viewQuery mirrors the dashboard controls in the query string.
type viewQuery struct {
	From     *int   `validate:"omitempty,gte=1000,lte=9999"`
	To       *int   `validate:"omitempty,gte=1000,lte=9999"`
	Norm     string `validate:"omitempty,oneof=absolute share"`
	Width    int    `validate:"omitempty,min=200,max=4096"`
	Height   int    `validate:"omitempty,min=200,max=4096"`
	MA       *bool
	Annotate *bool
}

// alertsQuery bounds the recent-alerts listing.
type alertsQuery struct {
	Limit int `validate:"min=1,max=100"`
}

func parseAlertsQuery(values url.Values) (alertsQuery, error) {
	q := alertsQuery{Limit: defaultAlertsLimit}
	limit, err := optionalInt(values, "limit")
	if err != nil {
		return q, err
	}
	if limit != nil {
		q.Limit = *limit
	}
	return q, nil
}

func parseViewQuery(values url.Values) (viewQuery, error) {
	var q viewQuery
	var err error

	if q.From, err = optionalInt(values, "from"); err != nil {
		return q, err
	}
	if q.To, err = optionalInt(values, "to"); err != nil {
		return q, err
	}
	if q.MA, err = optionalBool(values, "ma"); err != nil {
		return q, err
	}
	if q.Annotate, err = optionalBool(values, "annotate"); err != nil {
		return q, err
	}
	if w, err := optionalInt(values, "width"); err != nil {
		return q, err
	} else if w != nil {
		q.Width = *w
	}
	if h, err := optionalInt(values, "height"); err != nil {
		return q, err
	} else if h != nil {
		q.Height = *h
	}

	if raw := strings.TrimSpace(values.Get("norm")); raw != "" {
		norm, err := projection.ParseNormalization(raw)
		if err != nil {
			return q, err
		}
		q.Norm = string(norm)
	}
	return q, nil
}

// apply overlays the query onto defaults.
func (q viewQuery) apply(params projection.Params) projection.Params {
	if q.From != nil {
		params.YearRange.Min = *q.From
	}
	if q.To != nil {
		params.YearRange.Max = *q.To
	}
	if q.MA != nil {
		params.MovingAverage = *q.MA
	}
	if q.Annotate != nil {
		params.Annotations = *q.Annotate
	}
	if q.Norm != "" {
		params.Normalization = projection.Normalization(q.Norm)
	}
	return params
}

func optionalInt(values url.Values, key string) (*int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", key)
	}
	return &v, nil
}

func optionalBool(values url.Values, key string) (*bool, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a boolean", key)
	}
	return &v, nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "gte", "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, e.Param()))
		case "lte", "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, e.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
