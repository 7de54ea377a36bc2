package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront-api/internal/model"
)

// ErrStockConflict means a conditional decrement matched no row: the
// product vanished or its stock fell below the requested quantity.
var ErrStockConflict = errors.New("stock decrement conflict")

const (
	SortRelevance = "relevance"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNewest    = "newest"
)

type ProductFilter struct {
	Query             string
	Category          string
	Brand             string
	MinPrice          int64
	MaxPrice          int64
	InStock           bool
	FinancingEligible bool
	Sort              string
	Page              int
	Limit             int
}

type ProductRepository interface {
	Seed(ctx context.Context) error
	Create(ctx context.Context, product *model.Product) error
	FindByID(ctx context.Context, productID string) (*model.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*model.Product, int64, error)
	Brands(ctx context.Context) ([]string, error)

	// LockByID reads the row with a write lock held until tx ends.
	LockByID(ctx context.Context, tx *gorm.DB, productID string) (*model.Product, error)
	DecrementStock(ctx context.Context, tx *gorm.DB, productID string, qty int64) error
}

type productRepoImpl struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{
		db: db,
	}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool { return &b }

func (r *productRepoImpl) Seed(ctx context.Context) error {
	products := []model.Product{
		{ID: "1", Name: "1KW Solar Kit", Description: strPtr("Entry-level solar kit for small loads."), Price: 250000000, Currency: "NGN", Stock: 12, MinOrder: 1, Brand: strPtr("EnergyStack"), Category: strPtr("Solar Kits / Solutions"), ImageURL: strPtr("https://picsum.photos/seed/1kw/640/480"), FinancingEligible: boolPtr(true)},
		{ID: "2", Name: "3KW Solar Kit", Description: strPtr("Mid-range kit for homes and small offices."), Price: 750000000, Currency: "NGN", Stock: 8, MinOrder: 1, Brand: strPtr("EnergyStack"), Category: strPtr("Solar Kits / Solutions"), ImageURL: strPtr("https://picsum.photos/seed/3kw/640/480"), FinancingEligible: boolPtr(true)},
		{ID: "3", Name: "5KW Inverter", Description: strPtr("Pure sine-wave inverter for heavy loads."), Price: 420000000, Currency: "NGN", Stock: 5, MinOrder: 1, Brand: strPtr("VoltMax"), Category: strPtr("Inverters"), ImageURL: strPtr("https://picsum.photos/seed/5kw/640/480"), FinancingEligible: boolPtr(true)},
		{ID: "4", Name: "200Ah Lithium Battery", Description: strPtr("Deep-cycle LiFePO4 battery."), Price: 185000000, Currency: "NGN", Stock: 20, MinOrder: 1, Brand: strPtr("VoltMax"), Category: strPtr("Batteries"), ImageURL: strPtr("https://picsum.photos/seed/200ah/640/480"), FinancingEligible: boolPtr(false)},
		{ID: "5", Name: "450W Mono Panel", Description: strPtr("Monocrystalline panel, sold in pairs."), Price: 9500000, Currency: "NGN", Stock: 100, MinOrder: 2, Brand: strPtr("SunGrid"), Category: strPtr("Solar Panels"), ImageURL: strPtr("https://picsum.photos/seed/450w/640/480"), FinancingEligible: boolPtr(false)},
		{ID: "6", Name: "60A MPPT Charge Controller", Description: strPtr("MPPT controller for 12/24/48V banks."), Price: 12000000, Currency: "NGN", Stock: 0, MinOrder: 1, Brand: strPtr("SunGrid"), Category: strPtr("Accessories / Controllers"), ImageURL: strPtr("https://picsum.photos/seed/mppt/640/480"), FinancingEligible: boolPtr(false)},
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&products).Error
}

func (r *productRepoImpl) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepoImpl) FindByID(ctx context.Context, productID string) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", productID).
		First(&product).Error

	if err != nil {
		return nil, err
	}

	return &product, nil
}

func (r *productRepoImpl) List(ctx context.Context, f ProductFilter) ([]*model.Product, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Product{})

	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		like := "%" + q + "%"
		query = query.Where(
			"(LOWER(name) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ? OR LOWER(COALESCE(brand, '')) LIKE ?)",
			like, like, like,
		)
	}
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if f.Brand != "" {
		query = query.Where("brand = ?", f.Brand)
	}
	if f.MinPrice > 0 {
		query = query.Where("price_kobo >= ?", f.MinPrice)
	}
	if f.MaxPrice > 0 {
		query = query.Where("price_kobo <= ?", f.MaxPrice)
	}
	if f.InStock {
		query = query.Where("stock > 0")
	}
	if f.FinancingEligible {
		query = query.Where("financing_eligible = ?", true)
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []*model.Product
	err := query.
		Order(productOrder(f.Sort)).
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&products).
		Error

	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

func productOrder(sort string) string {
	switch sort {
	case SortPriceAsc:
		return "price_kobo ASC, id ASC"
	case SortPriceDesc:
		return "price_kobo DESC, id ASC"
	case SortNewest:
		return "created_at DESC, id ASC"
	default:
		// in-stock first, then newest
		return "CASE WHEN stock > 0 THEN 0 ELSE 1 END ASC, created_at DESC, id ASC"
	}
}

func (r *productRepoImpl) Brands(ctx context.Context) ([]string, error) {
	var brands []string
	err := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("brand IS NOT NULL AND brand <> ''").
		Distinct().
		Order("brand ASC").
		Pluck("brand", &brands).
		Error

	if err != nil {
		return nil, err
	}

	return brands, nil
}

func (r *productRepoImpl) LockByID(ctx context.Context, tx *gorm.DB, productID string) (*model.Product, error) {
	var product model.Product
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", productID).
		Take(&product).Error

	if err != nil {
		return nil, err
	}

	return &product, nil
}

func (r *productRepoImpl) DecrementStock(ctx context.Context, tx *gorm.DB, productID string, qty int64) error {
	result := tx.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock - ?", qty),
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStockConflict
	}

	return nil
}
