package models

import (
	"github.com/shopspring/decimal"
)

type Order struct {
	ID              int64           `json:"O_ID"`
	Date            Date            `json:"O_DATE"`
	Total           decimal.Decimal `json:"O_TOTAL"`
	ShippingAddress string          `json:"O_SHIPPING_ADDRESS"`
}

type OrderInput struct {
	Date            Date
	Total           decimal.Decimal
	ShippingAddress string
}

type OrderPatch struct {
	Date            *Date            `json:"O_DATE"`
	Total           *decimal.Decimal `json:"O_TOTAL"`
	ShippingAddress *string          `json:"O_SHIPPING_ADDRESS"`
}

func (p OrderPatch) IsEmpty() bool {
	return p.Date == nil && p.Total == nil && p.ShippingAddress == nil
}

func (p OrderPatch) Apply(o *Order) {
	// A blank date keeps the stored one; the column is never null.
	if p.Date != nil && !p.Date.IsZero() {
		o.Date = *p.Date
	}
	if p.Total != nil {
		o.Total = *p.Total
	}
	setString(&o.ShippingAddress, p.ShippingAddress)
}

func (p OrderPatch) Input() OrderInput {
	var o Order
	p.Apply(&o)
	return OrderInput{
		Date:            o.Date,
		Total:           o.Total,
		ShippingAddress: o.ShippingAddress,
	}
}

// OrderFilter matches ID exactly and Date as a substring of its YYYY-MM-DD form.
type OrderFilter struct {
	ID   string
	Date string
}
