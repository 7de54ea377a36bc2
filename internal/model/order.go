package model

import "time"

type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "placed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFulfilled OrderStatus = "fulfilled"
)

type Order struct {
	ID              string      `gorm:"primaryKey;size:64;not null" json:"id"`
	IdempotencyKey  string      `gorm:"size:255;uniqueIndex;not null" json:"-"`
	Status          OrderStatus `gorm:"size:32;index;not null" json:"status"`
	Subtotal        int64       `gorm:"column:subtotal_kobo;not null" json:"subtotalKobo"`
	Tax             int64       `gorm:"column:tax_kobo;not null" json:"taxKobo"`
	Total           int64       `gorm:"column:total_kobo;not null" json:"totalKobo"`
	Currency        string      `gorm:"size:8;not null" json:"currency"`
	CustomerName    string      `gorm:"size:255;not null" json:"customerName"`
	CustomerEmail   string      `gorm:"size:255;index;not null" json:"customerEmail"`
	CustomerAddress string      `gorm:"size:512;not null" json:"customerAddress"`
	Items           []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt       time.Time   `gorm:"index" json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// OrderItem snapshots name and unit price at order time.
type OrderItem struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// FK -> orders.id
	OrderID string `gorm:"size:64;index;not null" json:"orderId"`
	// not owned; products may change after the order is placed
	ProductID    string    `gorm:"size:64;index;not null" json:"productId"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	UnitPrice    int64     `gorm:"column:unit_price_kobo;not null" json:"unitPriceKobo"`
	Quantity     int64     `gorm:"column:qty;not null" json:"qty"`
	LineSubtotal int64     `gorm:"column:subtotal_kobo;not null" json:"subtotalKobo"`
	CreatedAt    time.Time `json:"createdAt"`
}
