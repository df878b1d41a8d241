// Package pricing derives the payable amount for a reservation. It is pure:
// no state, no clock, no storage.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// GSTPercent is the fixed tax rate applied to the discounted base amount.
const GSTPercent = 5

// Quote is the full price breakdown for a reservation. All amounts are in
// integer currency units, rounded to the nearest unit at each step.
type Quote struct {
	BaseAmount     int64 `json:"base_amount"`
	DiscountAmount int64 `json:"discount_amount"`
	GSTAmount      int64 `json:"gst_amount"`
	FinalAmount    int64 `json:"final_amount"`
}

// Compute builds a Quote from the trek's per-head base price, the
// participant count and an already-resolved discount amount. The discount
// applies before tax, so GST is charged on the discounted base:
//
//	final = base*participants - discount + gst(base*participants - discount)
func Compute(basePrice int64, participants int, discountAmount int64) (Quote, error) {
	if basePrice < 0 {
		return Quote{}, fmt.Errorf("base price must not be negative")
	}
	if participants < 1 {
		return Quote{}, fmt.Errorf("participants must be at least 1")
	}
	if discountAmount < 0 {
		return Quote{}, fmt.Errorf("discount must not be negative")
	}

	base := basePrice * int64(participants)
	if discountAmount > base {
		discountAmount = base
	}

	taxable := base - discountAmount
	gst := decimal.NewFromInt(taxable).
		Mul(decimal.NewFromInt(GSTPercent)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()

	return Quote{
		BaseAmount:     base,
		DiscountAmount: discountAmount,
		GSTAmount:      gst,
		FinalAmount:    taxable + gst,
	}, nil
}
