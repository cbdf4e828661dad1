package models

import (
	"github.com/shopspring/decimal"
)

type Laptop struct {
	ID          int64           `json:"L_ID"`
	Brand       string          `json:"L_BRAND"`
	Name        string          `json:"L_NAME"`
	Model       string          `json:"L_MODEL"`
	Price       decimal.Decimal `json:"L_PRICE"`
	CPU         string          `json:"L_CPU"`
	RAM         string          `json:"L_RAM"`
	Storage     string          `json:"L_STORAGE"`
	GPU         string          `json:"L_GPU"`
	ScreenSize  string          `json:"L_SCREEN_SIZE"`
	Weight      string          `json:"L_WEIGHT"`
	Description string          `json:"L_DESCRIPTION"`
	Image       *string         `json:"L_IMAGE"`
	Quantity    int             `json:"L_QUANTITY"`
}

// LaptopInput holds the columns written when a laptop is created. Image is
// only ever set from an uploaded file.
type LaptopInput struct {
	Brand       string
	Name        string
	Model       string
	Price       decimal.Decimal
	CPU         string
	RAM         string
	Storage     string
	GPU         string
	ScreenSize  string
	Weight      string
	Description string
	Image       *string
	Quantity    int
}

// LaptopPatch is a partial laptop. Nil fields are left untouched on update.
type LaptopPatch struct {
	Brand       *string          `json:"L_BRAND"`
	Name        *string          `json:"L_NAME"`
	Model       *string          `json:"L_MODEL"`
	Price       *decimal.Decimal `json:"L_PRICE"`
	CPU         *string          `json:"L_CPU"`
	RAM         *string          `json:"L_RAM"`
	Storage     *string          `json:"L_STORAGE"`
	GPU         *string          `json:"L_GPU"`
	ScreenSize  *string          `json:"L_SCREEN_SIZE"`
	Weight      *string          `json:"L_WEIGHT"`
	Description *string          `json:"L_DESCRIPTION"`
	Image       *string          `json:"-"`
	Quantity    *int             `json:"L_QUANTITY"`
}

func (p LaptopPatch) IsEmpty() bool {
	return p.Brand == nil && p.Name == nil && p.Model == nil && p.Price == nil &&
		p.CPU == nil && p.RAM == nil && p.Storage == nil && p.GPU == nil &&
		p.ScreenSize == nil && p.Weight == nil && p.Description == nil &&
		p.Image == nil && p.Quantity == nil
}

func (p LaptopPatch) Apply(l *Laptop) {
	setString(&l.Brand, p.Brand)
	setString(&l.Name, p.Name)
	setString(&l.Model, p.Model)
	if p.Price != nil {
		l.Price = *p.Price
	}
	setString(&l.CPU, p.CPU)
	setString(&l.RAM, p.RAM)
	setString(&l.Storage, p.Storage)
	setString(&l.GPU, p.GPU)
	setString(&l.ScreenSize, p.ScreenSize)
	setString(&l.Weight, p.Weight)
	setString(&l.Description, p.Description)
	if p.Image != nil {
		image := *p.Image
		l.Image = &image
	}
	setInt(&l.Quantity, p.Quantity)
}

func (p LaptopPatch) Input() LaptopInput {
	var l Laptop
	p.Apply(&l)
	return LaptopInput{
		Brand:       l.Brand,
		Name:        l.Name,
		Model:       l.Model,
		Price:       l.Price,
		CPU:         l.CPU,
		RAM:         l.RAM,
		Storage:     l.Storage,
		GPU:         l.GPU,
		ScreenSize:  l.ScreenSize,
		Weight:      l.Weight,
		Description: l.Description,
		Image:       l.Image,
		Quantity:    l.Quantity,
	}
}

// LaptopFilter values are matched as substrings. Empty values are ignored.
type LaptopFilter struct {
	Brand      string
	Name       string
	Model      string
	CPU        string
	RAM        string
	Storage    string
	GPU        string
	ScreenSize string
	Weight     string
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setInt64(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}
