package models

// Cart is one cart line. CustomerID and LaptopID are not enforced as
// foreign keys.
type Cart struct {
	ID         int64 `json:"CAR_ID"`
	CustomerID int64 `json:"C_ID"`
	LaptopID   int64 `json:"L_ID"`
	Date       Date  `json:"CAR_DATE"`
	Quantity   int   `json:"CAR_QUANTITY"`
}

// CartInput leaves Date zero to let the database default to the current day.
type CartInput struct {
	CustomerID int64
	LaptopID   int64
	Date       Date
	Quantity   int
}

type CartPatch struct {
	CustomerID *int64 `json:"C_ID"`
	LaptopID   *int64 `json:"L_ID"`
	Date       *Date  `json:"CAR_DATE"`
	Quantity   *int   `json:"CAR_QUANTITY"`
}

func (p CartPatch) IsEmpty() bool {
	return p.CustomerID == nil && p.LaptopID == nil && p.Date == nil && p.Quantity == nil
}

func (p CartPatch) Apply(c *Cart) {
	setInt64(&c.CustomerID, p.CustomerID)
	setInt64(&c.LaptopID, p.LaptopID)
	// A blank date keeps the stored one; the column is never null.
	if p.Date != nil && !p.Date.IsZero() {
		c.Date = *p.Date
	}
	setInt(&c.Quantity, p.Quantity)
}

func (p CartPatch) Input() CartInput {
	var c Cart
	p.Apply(&c)
	return CartInput{
		CustomerID: c.CustomerID,
		LaptopID:   c.LaptopID,
		Date:       c.Date,
		Quantity:   c.Quantity,
	}
}

// CartFilter matches CustomerID and LaptopID exactly and Date as a substring
// of its YYYY-MM-DD form.
type CartFilter struct {
	CustomerID string
	LaptopID   string
	Date       string
}
