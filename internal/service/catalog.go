package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"storefront-api/internal/apperror"
	"storefront-api/internal/dto"
	"storefront-api/internal/model"
	"storefront-api/internal/repository"
)

const (
	DefaultPageLimit = 12
	MaxPageLimit     = 100
)

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

type CatalogService interface {
	ListProducts(ctx context.Context, filter repository.ProductFilter) (*dto.Page[*model.Product], error)
	GetProduct(ctx context.Context, productID string) (*model.Product, error)
	Brands(ctx context.Context) ([]string, error)
	Categories() []string
}

type catalogServiceImpl struct {
	productRepo repository.ProductRepository
}

func NewCatalogService(productRepo repository.ProductRepository) CatalogService {
	return &catalogServiceImpl{
		productRepo: productRepo,
	}
}

func (s *catalogServiceImpl) ListProducts(ctx context.Context, filter repository.ProductFilter) (*dto.Page[*model.Product], error) {
	switch filter.Sort {
	case "":
		filter.Sort = repository.SortRelevance
	case repository.SortRelevance, repository.SortPriceAsc, repository.SortPriceDesc, repository.SortNewest:
	default:
		return nil, apperror.Validation("Unknown sort order", map[string]string{"sort": filter.Sort})
	}
	if filter.MinPrice < 0 || filter.MaxPrice < 0 {
		return nil, apperror.Validation("Price bounds must not be negative", nil)
	}
	if filter.MaxPrice > 0 && filter.MinPrice > filter.MaxPrice {
		return nil, apperror.Validation("minPriceKobo must not exceed maxPriceKobo", nil)
	}
	filter.Page, filter.Limit = normalizePage(filter.Page, filter.Limit)

	products, total, err := s.productRepo.List(ctx, filter)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list products: %w", err))
	}

	return dto.NewPage(products, filter.Page, filter.Limit, total), nil
}

func (s *catalogServiceImpl) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound(fmt.Sprintf("product %s not found", productID))
	}
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("get product: %w", err))
	}
	return product, nil
}

func (s *catalogServiceImpl) Brands(ctx context.Context) ([]string, error) {
	brands, err := s.productRepo.Brands(ctx)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list brands: %w", err))
	}
	if brands == nil {
		brands = []string{}
	}
	return brands, nil
}

func (s *catalogServiceImpl) Categories() []string {
	return append([]string(nil), model.Categories...)
}
