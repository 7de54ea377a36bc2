package model

import "time"

// Product is a catalog row. Money is in minor units (kobo).
type Product struct {
	ID                string    `gorm:"primaryKey;size:64;not null" json:"id"`
	Name              string    `gorm:"size:255;not null" json:"name"`
	Description       *string   `gorm:"type:text" json:"description,omitempty"`
	Price             int64     `gorm:"column:price_kobo;not null" json:"priceKobo"`
	Currency          string    `gorm:"size:8;not null;default:NGN" json:"currency"`
	Stock             int64     `gorm:"not null;default:0" json:"stock"`
	MinOrder          int64     `gorm:"not null;default:1" json:"minOrder"`
	Brand             *string   `gorm:"size:128;index" json:"brand,omitempty"`
	Category          *string   `gorm:"size:64;index" json:"category,omitempty"`
	ImageURL          *string   `gorm:"size:512" json:"imageUrl,omitempty"`
	FinancingEligible *bool     `json:"financingEligible,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// OrderStep is the quantity increment a line must respect.
func (p *Product) OrderStep() int64 {
	if p.MinOrder < 1 {
		return 1
	}
	return p.MinOrder
}
