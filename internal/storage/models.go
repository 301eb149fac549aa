package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// ObservationRecord is one persisted year of raw debt data.
type ObservationRecord struct {
	Year         int
	GDP          decimal.Decimal
	ExternalDebt decimal.Decimal
	DomesticDebt decimal.Decimal
	Source       string
	UpdatedAt    time.Time
}

// AlertRecord captures an emitted leverage alert for de-duplication/auditing.
type AlertRecord struct {
	ID        int64
	Year      int
	DebtToGDP decimal.Decimal
	Threshold decimal.Decimal
	Direction string
	Channels  []string
	CreatedAt time.Time
}
