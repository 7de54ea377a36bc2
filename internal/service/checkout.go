package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"storefront-api/internal/apperror"
	"storefront-api/internal/config"
	"storefront-api/internal/dto"
	"storefront-api/internal/idempotency"
	"storefront-api/internal/model"
	"storefront-api/internal/pricing"
	"storefront-api/internal/repository"
)

var guestCustomer = dto.Customer{
	Name:    "Guest",
	Email:   "guest@example.com",
	Address: "Guest address",
}

type CheckoutResult struct {
	Response *dto.CheckoutResponse
	// Replayed is set when Response was produced by an earlier request
	// with the same idempotency key.
	Replayed bool
}

type CheckoutService interface {
	Checkout(ctx context.Context, idempotencyKey string, req *dto.CheckoutRequest) (*CheckoutResult, error)
}

type checkoutServiceImpl struct {
	db          *gorm.DB
	productRepo repository.ProductRepository
	orderRepo   repository.OrderRepository
	store       idempotency.Store
	cfg         config.Checkout
	validate    *validator.Validate
	inflight    singleflight.Group
	log         zerolog.Logger
}

func NewCheckoutService(
	db *gorm.DB,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	store idempotency.Store,
	cfg config.Checkout,
	log zerolog.Logger,
) CheckoutService {
	if cfg.TaxRate.IsZero() {
		cfg.TaxRate = pricing.DefaultTaxRate
	}
	if cfg.Currency == "" {
		cfg.Currency = "NGN"
	}

	return &checkoutServiceImpl{
		db:          db,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		store:       store,
		cfg:         cfg,
		validate:    newValidator(),
		log:         log.With().Str("component", "checkout").Logger(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type checkoutInput struct {
	customer dto.Customer
	lines    []dto.Line
}

func (s *checkoutServiceImpl) Checkout(ctx context.Context, idempotencyKey string, req *dto.CheckoutRequest) (*CheckoutResult, error) {
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		return nil, apperror.MissingIdempotencyKey()
	}

	resp, found, err := s.replay(ctx, key)
	if err != nil {
		return nil, err
	}
	if found {
		return &CheckoutResult{Response: resp, Replayed: true}, nil
	}

	in, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	res, led, err := s.coalesce(ctx, key, in)
	if err != nil && !led {
		// the attempt we waited on failed and cached nothing; run our own
		res, _, err = s.coalesce(ctx, key, in)
	}
	return res, err
}

// coalesce runs at most one attempt per key at a time in this process.
// Callers that joined an attempt led by another request get a replay of
// its result. led reports whether this caller ran the attempt.
func (s *checkoutServiceImpl) coalesce(ctx context.Context, key string, in *checkoutInput) (*CheckoutResult, bool, error) {
	led := false
	v, err, _ := s.inflight.Do(key, func() (interface{}, error) {
		led = true

		resp, found, err := s.replay(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			return &CheckoutResult{Response: resp, Replayed: true}, nil
		}

		return s.place(ctx, key, in)
	})
	if err != nil {
		return nil, led, err
	}

	res := v.(*CheckoutResult)
	if !led {
		return &CheckoutResult{Response: idempotency.Clone(res.Response), Replayed: true}, false, nil
	}
	return res, true, nil
}

// replay looks for an earlier success under key: first in the cache, then
// in the orders table, which outlives the cache.
func (s *checkoutServiceImpl) replay(ctx context.Context, key string) (*dto.CheckoutResponse, bool, error) {
	resp, found, err := s.store.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("idempotency_key", key).Msg("idempotency cache read failed")
	} else if found {
		return resp, true, nil
	}

	order, err := s.orderRepo.FindByIdempotencyKey(ctx, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperror.Internal(fmt.Errorf("find order by idempotency key: %w", err))
	}

	resp = orderResponse(order)
	s.remember(ctx, key, resp)
	return resp, true, nil
}

func (s *checkoutServiceImpl) remember(ctx context.Context, key string, resp *dto.CheckoutResponse) {
	if err := s.store.Put(ctx, key, resp); err != nil {
		s.log.Warn().Err(err).Str("idempotency_key", key).Msg("idempotency cache write failed")
	}
}

func (s *checkoutServiceImpl) prepare(req *dto.CheckoutRequest) (*checkoutInput, error) {
	if req == nil {
		return nil, apperror.Validation("Request body is required", nil)
	}

	lines := req.Lines
	if len(lines) == 0 {
		lines = req.Items
	}
	if len(lines) == 0 {
		return nil, apperror.Validation("At least one line is required", map[string]string{"lines": "required"})
	}

	var customer dto.Customer
	switch {
	case req.Customer != nil:
		customer = dto.Customer{
			Name:    strings.TrimSpace(req.Customer.Name),
			Email:   strings.TrimSpace(req.Customer.Email),
			Address: strings.TrimSpace(req.Customer.Address),
		}
	case s.cfg.AllowGuest:
		customer = guestCustomer
	default:
		return nil, apperror.Validation("Customer details are required", map[string]string{"customer": "required"})
	}

	details := make(map[string]string)
	s.collect(details, "customer.", s.validate.Struct(customer))
	for i, line := range lines {
		s.collect(details, fmt.Sprintf("lines[%d].", i), s.validate.Struct(line))
	}
	if len(details) > 0 {
		return nil, apperror.Validation("Invalid checkout request", details)
	}

	return &checkoutInput{
		customer: customer,
		lines:    lines,
	}, nil
}

func (s *checkoutServiceImpl) collect(details map[string]string, prefix string, err error) {
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		details[strings.TrimSuffix(prefix, ".")] = err.Error()
		return
	}
	for _, fe := range fieldErrs {
		details[prefix+fe.Field()] = fe.Tag()
	}
}

func (s *checkoutServiceImpl) place(ctx context.Context, key string, in *checkoutInput) (*CheckoutResult, error) {
	txCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	var resp *dto.CheckoutResponse
	err := s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		if err := repository.ApplyLockTimeout(txCtx, tx, s.cfg.LockTimeout); err != nil {
			return fmt.Errorf("apply lock timeout: %w", err)
		}

		// lines are locked and checked in the order the client sent them
		locked := make(map[string]*model.Product)
		requested := make(map[string]int64)
		priced := make([]pricing.Line, len(in.lines))
		for i, line := range in.lines {
			productID := string(line.ProductID)

			product, ok := locked[productID]
			if !ok {
				p, err := s.productRepo.LockByID(txCtx, tx, productID)
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperror.ProductNotFound(productID)
				}
				if err != nil {
					return fmt.Errorf("lock product %s: %w", productID, err)
				}
				locked[productID] = p
				product = p
			}

			if line.Qty%product.OrderStep() != 0 {
				return apperror.InvalidQuantityStep(productID, line.Qty, product.OrderStep())
			}
			requested[productID] += line.Qty
			if requested[productID] > product.Stock {
				return apperror.InsufficientStock(productID, requested[productID], product.Stock)
			}

			priced[i] = pricing.Line{UnitPrice: product.Price, Quantity: line.Qty}
		}

		totals := pricing.Calculate(priced, s.cfg.TaxRate)
		order := &model.Order{
			ID:              uuid.NewString(),
			IdempotencyKey:  key,
			Status:          model.OrderStatusPlaced,
			Subtotal:        totals.Subtotal,
			Tax:             totals.Tax,
			Total:           totals.Total,
			Currency:        s.cfg.Currency,
			CustomerName:    in.customer.Name,
			CustomerEmail:   in.customer.Email,
			CustomerAddress: in.customer.Address,
		}
		if err := s.orderRepo.Create(txCtx, tx, order); err != nil {
			return fmt.Errorf("store order in db: %w", err)
		}

		items := make([]*model.OrderItem, len(in.lines))
		for i, line := range in.lines {
			product := locked[string(line.ProductID)]
			items[i] = &model.OrderItem{
				OrderID:      order.ID,
				ProductID:    product.ID,
				Name:         product.Name,
				UnitPrice:    priced[i].UnitPrice,
				Quantity:     priced[i].Quantity,
				LineSubtotal: priced[i].Subtotal(),
			}
		}
		if err := s.orderRepo.CreateOrderItems(txCtx, tx, items); err != nil {
			return fmt.Errorf("store order items in db: %w", err)
		}

		for _, line := range in.lines {
			productID := string(line.ProductID)
			err := s.productRepo.DecrementStock(txCtx, tx, productID, line.Qty)
			if errors.Is(err, repository.ErrStockConflict) {
				return apperror.InsufficientStock(productID, requested[productID], locked[productID].Stock)
			}
			if err != nil {
				return fmt.Errorf("decrement stock of %s: %w", productID, err)
			}
		}

		order.Items = make([]model.OrderItem, len(items))
		for i, item := range items {
			order.Items[i] = *item
		}
		resp = orderResponse(order)
		return nil
	})

	if err != nil {
		return s.resolveFailure(ctx, key, err)
	}

	s.log.Info().
		Str("order_id", resp.OrderID).
		Str("idempotency_key", key).
		Int64("total_kobo", resp.Totals.TotalKobo).
		Int("lines", len(resp.Items)).
		Msg("order placed")

	s.remember(ctx, key, resp)
	return &CheckoutResult{Response: resp}, nil
}

func (s *checkoutServiceImpl) resolveFailure(ctx context.Context, key string, err error) (*CheckoutResult, error) {
	if _, ok := apperror.As(err); ok {
		return nil, err
	}

	// another process committed an order under this key first
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		resp, found, lookupErr := s.replay(ctx, key)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if found {
			return &CheckoutResult{Response: resp, Replayed: true}, nil
		}
	}

	if repository.IsLockTimeout(err) {
		return nil, apperror.LockTimeout(err)
	}

	return nil, apperror.Internal(fmt.Errorf("checkout transaction: %w", err))
}

func orderResponse(order *model.Order) *dto.CheckoutResponse {
	items := make([]dto.CheckoutItem, len(order.Items))
	for i, item := range order.Items {
		items[i] = dto.CheckoutItem{
			ProductID:     item.ProductID,
			Name:          item.Name,
			Qty:           item.Quantity,
			UnitPriceKobo: item.UnitPrice,
			SubtotalKobo:  item.LineSubtotal,
		}
	}

	return &dto.CheckoutResponse{
		OrderID: order.ID,
		Items:   items,
		Totals: dto.CheckoutTotals{
			SubtotalKobo: order.Subtotal,
			TaxKobo:      order.Tax,
			TotalKobo:    order.Total,
		},
	}
}
