package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ProductID accepts both JSON strings and integer literals ("7" or 7).
type ProductID string

func (id *ProductID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ProductID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("productId must be a string or integer: %w", err)
	}
	if _, err := n.Int64(); err != nil {
		return fmt.Errorf("productId must be an integer, got %s", n)
	}
	*id = ProductID(n.String())
	return nil
}

type Customer struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Address string `json:"address" validate:"required"`
}

type Line struct {
	ProductID ProductID `json:"productId" validate:"required"`
	Qty       int64     `json:"qty" validate:"gt=0"`
}

type CheckoutRequest struct {
	Customer *Customer `json:"customer"`
	Lines    []Line    `json:"lines"`
	// Items is an accepted alias of Lines.
	Items []Line `json:"items"`
}

type CheckoutItem struct {
	ProductID     string `json:"productId"`
	Name          string `json:"name"`
	Qty           int64  `json:"qty"`
	UnitPriceKobo int64  `json:"unitPriceKobo"`
	SubtotalKobo  int64  `json:"subtotalKobo"`
}

type CheckoutTotals struct {
	SubtotalKobo int64 `json:"subtotalKobo"`
	TaxKobo      int64 `json:"taxKobo"`
	TotalKobo    int64 `json:"totalKobo"`
}

type CheckoutResponse struct {
	OrderID string         `json:"orderId"`
	Items   []CheckoutItem `json:"items"`
	Totals  CheckoutTotals `json:"totals"`
}

type Page[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func NewPage[T any](data []T, page, limit int, total int64) *Page[T] {
	totalPages := 1
	if limit > 0 && total > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	if data == nil {
		data = []T{}
	}
	return &Page[T]{
		Data:       data,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}
}

type ListResponse[T any] struct {
	Data []T `json:"data"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
