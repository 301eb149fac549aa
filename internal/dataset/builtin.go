package dataset

import "github.com/shopspring/decimal"

// Builtin returns the illustrative 2010-2020 table shipped with the dashboard.
func Builtin() []RawObservation {
	raw := make([]RawObservation, 0, 11)
	for i := 0; i <= 10; i++ {
		raw = append(raw, RawObservation{
			Year:         2010 + i,
			GDP:          decimal.NewFromInt(int64(500 + 20*i)),
			ExternalDebt: decimal.NewFromInt(int64(50 + 10*i)),
			DomesticDebt: decimal.NewFromInt(int64(100 + 5*i)),
		})
	}
	return raw
}
