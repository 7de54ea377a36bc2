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

type OrderService interface {
	ListOrders(ctx context.Context, page, limit int) (*dto.Page[*model.Order], error)
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
}

type orderServiceImpl struct {
	orderRepo repository.OrderRepository
}

func NewOrderService(orderRepo repository.OrderRepository) OrderService {
	return &orderServiceImpl{
		orderRepo: orderRepo,
	}
}

func (s *orderServiceImpl) ListOrders(ctx context.Context, page, limit int) (*dto.Page[*model.Order], error) {
	page, limit = normalizePage(page, limit)

	orders, total, err := s.orderRepo.List(ctx, page, limit)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list orders: %w", err))
	}

	return dto.NewPage(orders, page, limit, total), nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound(fmt.Sprintf("order %s not found", orderID))
	}
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("get order: %w", err))
	}
	return order, nil
}
