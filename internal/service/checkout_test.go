package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"storefront-api/internal/apperror"
	"storefront-api/internal/config"
	"storefront-api/internal/dto"
	"storefront-api/internal/idempotency"
	"storefront-api/internal/model"
	"storefront-api/internal/pricing"
	"storefront-api/internal/repository"
	"storefront-api/internal/testutil"
)

var ada = &dto.Customer{Name: "Ada Obi", Email: "ada@example.com", Address: "12 Marina, Lagos"}

func checkoutRequest(customer *dto.Customer, lines ...dto.Line) *dto.CheckoutRequest {
	return &dto.CheckoutRequest{Customer: customer, Lines: lines}
}

func line(productID string, qty int64) dto.Line {
	return dto.Line{ProductID: dto.ProductID(productID), Qty: qty}
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (*dto.CheckoutResponse, bool, error) {
	return nil, false, errors.New("cache down")
}

func (brokenStore) Put(context.Context, string, *dto.CheckoutResponse) error {
	return errors.New("cache down")
}

// staleOrderRepo misses the first lookups by idempotency key, as if another
// process committed its order after we looked.
type staleOrderRepo struct {
	repository.OrderRepository
	misses int
}

func (r *staleOrderRepo) FindByIdempotencyKey(ctx context.Context, key string) (*model.Order, error) {
	if r.misses > 0 {
		r.misses--
		return nil, gorm.ErrRecordNotFound
	}
	return r.OrderRepository.FindByIdempotencyKey(ctx, key)
}

type CheckoutServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	db        *gorm.DB
	orderRepo repository.OrderRepository
	store     *idempotency.MemoryStore
	svc       CheckoutService
}

func (s *CheckoutServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = testutil.NewDB(s.T())
	s.orderRepo = repository.NewOrderRepository(s.db)
	s.store = idempotency.NewMemoryStore(100, time.Hour)
	s.svc = s.newService(s.store, false)
}

func (s *CheckoutServiceTestSuite) newService(store idempotency.Store, allowGuest bool) CheckoutService {
	return newCheckoutService(s.db, s.orderRepo, store, allowGuest)
}

func newCheckoutService(db *gorm.DB, orderRepo repository.OrderRepository, store idempotency.Store, allowGuest bool) CheckoutService {
	return NewCheckoutService(
		db,
		repository.NewProductRepository(db),
		orderRepo,
		store,
		config.Checkout{
			TaxRate:     pricing.DefaultTaxRate,
			Currency:    "NGN",
			Timeout:     5 * time.Second,
			LockTimeout: time.Second,
			AllowGuest:  allowGuest,
		},
		zerolog.Nop(),
	)
}

func (s *CheckoutServiceTestSuite) requireCode(err error, code apperror.Code) {
	s.Require().Error(err)
	s.Equal(code, apperror.CodeOf(err), err.Error())
}

func TestCheckoutServiceSuite(t *testing.T) {
	suite.Run(t, new(CheckoutServiceTestSuite))
}

func (s *CheckoutServiceTestSuite) TestPlacesOrder() {
	testutil.Product(s.T(), s.db, "1", 50000, 10, 1)

	res, err := s.svc.Checkout(s.ctx, "abc-1", checkoutRequest(ada, line("1", 2)))
	s.Require().NoError(err)
	s.False(res.Replayed)
	s.NotEmpty(res.Response.OrderID)
	s.Equal(dto.CheckoutTotals{SubtotalKobo: 100000, TaxKobo: 7500, TotalKobo: 107500}, res.Response.Totals)
	s.Equal([]dto.CheckoutItem{
		{ProductID: "1", Name: "Product 1", Qty: 2, UnitPriceKobo: 50000, SubtotalKobo: 100000},
	}, res.Response.Items)
	s.Equal(int64(8), testutil.Stock(s.T(), s.db, "1"))

	order, err := s.orderRepo.FindByID(s.ctx, res.Response.OrderID)
	s.Require().NoError(err)
	s.Equal(model.OrderStatusPlaced, order.Status)
	s.Equal("abc-1", order.IdempotencyKey)
	s.Equal("ada@example.com", order.CustomerEmail)
	s.Equal("NGN", order.Currency)
	s.Equal(int64(107500), order.Total)
	s.Len(order.Items, 1)
}

func (s *CheckoutServiceTestSuite) TestReplaysSameKey() {
	testutil.Product(s.T(), s.db, "1", 50000, 10, 1)

	first, err := s.svc.Checkout(s.ctx, "abc-1", checkoutRequest(ada, line("1", 2)))
	s.Require().NoError(err)

	second, err := s.svc.Checkout(s.ctx, "abc-1", checkoutRequest(ada, line("1", 2)))
	s.Require().NoError(err)
	s.True(second.Replayed)
	s.Equal(first.Response, second.Response)

	s.Equal(int64(8), testutil.Stock(s.T(), s.db, "1"))
	s.Equal(int64(1), testutil.OrderCount(s.T(), s.db))
}

func (s *CheckoutServiceTestSuite) TestReplayShortCircuitsValidation() {
	testutil.Product(s.T(), s.db, "1", 50000, 10, 1)

	first, err := s.svc.Checkout(s.ctx, "abc-1", checkoutRequest(ada, line("1", 2)))
	s.Require().NoError(err)

	second, err := s.svc.Checkout(s.ctx, "abc-1", &dto.CheckoutRequest{})
	s.Require().NoError(err)
	s.True(second.Replayed)
	s.Equal(first.Response.OrderID, second.Response.OrderID)
}

func (s *CheckoutServiceTestSuite) TestReplaysFromOrdersAfterCacheLoss() {
	testutil.Product(s.T(), s.db, "1", 50000, 10, 1)

	first, err := s.svc.Checkout(s.ctx, "abc-1", checkoutRequest(ada, line("1", 2)))
	s.Require().NoError(err)

	fresh := idempotency.NewMemoryStore(100, time.Hour)
	second, err := s.newService(fresh, false).Checkout(s.ctx, "abc-1", checkoutRequest(ada, line("1", 2)))
	s.Require().NoError(err)
	s.True(second.Replayed)
	s.Equal(first.Response, second.Response)
	s.Equal(int64(8), testutil.Stock(s.T(), s.db, "1"))
	s.Equal(1, fresh.Len())
}

func (s *CheckoutServiceTestSuite) TestBrokenCacheDoesNotFailCheckout() {
	testutil.Product(s.T(), s.db, "1", 50000, 10, 1)
	svc := s.newService(brokenStore{}, false)

	first, err := svc.Checkout(s.ctx, "abc-1", checkoutRequest(ada, line("1", 2)))
	s.Require().NoError(err)
	s.False(first.Replayed)

	second, err := svc.Checkout(s.ctx, "abc-1", checkoutRequest(ada, line("1", 2)))
	s.Require().NoError(err)
	s.True(second.Replayed)
	s.Equal(first.Response.OrderID, second.Response.OrderID)
	s.Equal(int64(8), testutil.Stock(s.T(), s.db, "1"))
}

func (s *CheckoutServiceTestSuite) TestMissingIdempotencyKey() {
	testutil.Product(s.T(), s.db, "1", 50000, 10, 1)

	_, err := s.svc.Checkout(s.ctx, "  ", checkoutRequest(ada, line("1", 2)))
	s.requireCode(err, apperror.CodeMissingIdempotencyKey)

	// checked before the body
	_, err = s.svc.Checkout(s.ctx, "", nil)
	s.requireCode(err, apperror.CodeMissingIdempotencyKey)
}

func (s *CheckoutServiceTestSuite) TestValidation() {
	testutil.Product(s.T(), s.db, "1", 50000, 10, 1)

	cases := []struct {
		name  string
		req   *dto.CheckoutRequest
		field string
		tag   string
	}{
		{"no customer", checkoutRequest(nil, line("1", 1)), "customer", "required"},
		{"bad email", checkoutRequest(&dto.Customer{Name: "Ada", Email: "nope", Address: "Lagos"}, line("1", 1)), "customer.email", "email"},
		{"blank name", checkoutRequest(&dto.Customer{Name: "  ", Email: "a@b.co", Address: "Lagos"}, line("1", 1)), "customer.name", "required"},
		{"no lines", checkoutRequest(ada), "lines", "required"},
		{"zero qty", checkoutRequest(ada, line("1", 0)), "lines[0].qty", "gt"},
		{"negative qty", checkoutRequest(ada, line("1", 2), line("1", -1)), "lines[1].qty", "gt"},
		{"missing product id", checkoutRequest(ada, line("", 1)), "lines[0].productId", "required"},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.svc.Checkout(s.ctx, "key-"+tc.name, tc.req)
			s.requireCode(err, apperror.CodeValidation)

			appErr, _ := apperror.As(err)
			s.Equal(tc.tag, appErr.Details.(map[string]string)[tc.field])
		})
	}

	s.Equal(int64(10), testutil.Stock(s.T(), s.db, "1"))
	s.Equal(int64(0), testutil.OrderCount(s.T(), s.db))
}

func (s *CheckoutServiceTestSuite) TestAcceptsItemsAlias() {
	testutil.Product(s.T(), s.db, "1", 50000, 10, 1)

	res, err := s.svc.Checkout(s.ctx, "abc-1", &dto.CheckoutRequest{Customer: ada, Items: []dto.Line{line("1", 1)}})
	s.Require().NoError(err)
	s.Equal(int64(53750), res.Response.Totals.TotalKobo)
}

func (s *CheckoutServiceTestSuite) TestGuestCheckout() {
	testutil.Product(s.T(), s.db, "1", 50000, 10, 1)

	res, err := s.newService(s.store, true).Checkout(s.ctx, "guest-1", checkoutRequest(nil, line("1", 1)))
	s.Require().NoError(err)

	order, err := s.orderRepo.FindByID(s.ctx, res.Response.OrderID)
	s.Require().NoError(err)
	s.Equal("Guest", order.CustomerName)
	s.Equal("guest@example.com", order.CustomerEmail)
	s.Equal("Guest address", order.CustomerAddress)
}

func (s *CheckoutServiceTestSuite) TestProductNotFoundRollsBack() {
	testutil.Product(s.T(), s.db, "1", 50000, 10, 1)

	_, err := s.svc.Checkout(s.ctx, "abc-1", checkoutRequest(ada, line("1", 2), line("404", 1)))
	s.requireCode(err, apperror.CodeProductNotFound)
	s.Contains(err.Error(), "404")

	s.Equal(int64(10), testutil.Stock(s.T(), s.db, "1"))
	s.Equal(int64(0), testutil.OrderCount(s.T(), s.db))
}

func (s *CheckoutServiceTestSuite) TestRejectsQuantityOffStep() {
	testutil.Product(s.T(), s.db, "p", 9500, 100, 2)

	_, err := s.svc.Checkout(s.ctx, "abc-1", checkoutRequest(ada, line("p", 3)))
	s.requireCode(err, apperror.CodeInvalidQuantityStep)
	s.Equal(int64(100), testutil.Stock(s.T(), s.db, "p"))

	res, err := s.svc.Checkout(s.ctx, "abc-2", checkoutRequest(ada, line("p", 4)))
	s.Require().NoError(err)
	s.Equal(int64(38000), res.Response.Totals.SubtotalKobo)
	s.Equal(int64(96), testutil.Stock(s.T(), s.db, "p"))
}

func (s *CheckoutServiceTestSuite) TestInsufficientStockOnLaterLineRollsBack() {
	testutil.Product(s.T(), s.db, "a", 1000, 5, 1)
	testutil.Product(s.T(), s.db, "b", 2000, 1, 1)

	_, err := s.svc.Checkout(s.ctx, "abc-1", checkoutRequest(ada, line("a", 5), line("b", 2)))
	s.requireCode(err, apperror.CodeInsufficientStock)

	s.Equal(int64(5), testutil.Stock(s.T(), s.db, "a"))
	s.Equal(int64(1), testutil.Stock(s.T(), s.db, "b"))
	s.Equal(int64(0), testutil.OrderCount(s.T(), s.db))
}

func (s *CheckoutServiceTestSuite) TestDuplicateLinesCountTogether() {
	testutil.Product(s.T(), s.db, "a", 1000, 3, 1)

	_, err := s.svc.Checkout(s.ctx, "abc-1", checkoutRequest(ada, line("a", 2), line("a", 2)))
	s.requireCode(err, apperror.CodeInsufficientStock)
	s.Equal(int64(3), testutil.Stock(s.T(), s.db, "a"))

	res, err := s.svc.Checkout(s.ctx, "abc-2", checkoutRequest(ada, line("a", 1), line("a", 2)))
	s.Require().NoError(err)
	s.Len(res.Response.Items, 2)
	s.Equal(int64(0), testutil.Stock(s.T(), s.db, "a"))
}

func (s *CheckoutServiceTestSuite) TestFailedAttemptIsNotCached() {
	testutil.Product(s.T(), s.db, "a", 1000, 1, 1)

	_, err := s.svc.Checkout(s.ctx, "abc-1", checkoutRequest(ada, line("a", 2)))
	s.requireCode(err, apperror.CodeInsufficientStock)

	s.Require().NoError(s.db.Model(&model.Product{}).Where("id = ?", "a").Update("stock", 5).Error)

	res, err := s.svc.Checkout(s.ctx, "abc-1", checkoutRequest(ada, line("a", 2)))
	s.Require().NoError(err)
	s.False(res.Replayed)
	s.Equal(int64(3), testutil.Stock(s.T(), s.db, "a"))
}

func (s *CheckoutServiceTestSuite) TestOrderKeepsPriceSnapshot() {
	testutil.Product(s.T(), s.db, "a", 1000, 10, 1)

	res, err := s.svc.Checkout(s.ctx, "abc-1", checkoutRequest(ada, line("a", 3)))
	s.Require().NoError(err)

	s.Require().NoError(s.db.Model(&model.Product{}).Where("id = ?", "a").
		Updates(map[string]interface{}{"price_kobo": 99999, "name": "Renamed"}).Error)

	order, err := s.orderRepo.FindByID(s.ctx, res.Response.OrderID)
	s.Require().NoError(err)
	s.Require().Len(order.Items, 1)
	s.Equal(int64(1000), order.Items[0].UnitPrice)
	s.Equal(int64(3000), order.Items[0].LineSubtotal)
	s.Equal("Product a", order.Items[0].Name)
	s.Equal(int64(3000), order.Subtotal)
}

func (s *CheckoutServiceTestSuite) TestConcurrentCheckoutsDoNotOversell() {
	testutil.Product(s.T(), s.db, "a", 1000, 3, 1)

	keys := []string{"key-1", "key-2"}
	errs := make([]error, len(keys))
	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.svc.Checkout(s.ctx, key, checkoutRequest(ada, line("a", 2)))
		}()
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperror.CodeOf(err) == apperror.CodeInsufficientStock:
			short++
		}
	}
	s.Equal(1, ok)
	s.Equal(1, short)
	s.Equal(int64(1), testutil.Stock(s.T(), s.db, "a"))
	s.Equal(int64(1), testutil.OrderCount(s.T(), s.db))
}

func (s *CheckoutServiceTestSuite) TestConcurrentSameKeyPlacesOneOrder() {
	testutil.Product(s.T(), s.db, "a", 1000, 100, 1)

	const n = 5
	results := make([]*CheckoutResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = s.svc.Checkout(s.ctx, "same", checkoutRequest(ada, line("a", 2)))
		}()
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < n; i++ {
		s.Require().NoError(errs[i])
		s.Equal(results[0].Response.OrderID, results[i].Response.OrderID)
		if !results[i].Replayed {
			fresh++
		}
	}
	s.Equal(1, fresh)
	s.Equal(int64(98), testutil.Stock(s.T(), s.db, "a"))
	s.Equal(int64(1), testutil.OrderCount(s.T(), s.db))
}

func (s *CheckoutServiceTestSuite) TestDuplicateKeyFromAnotherProcessReplays() {
	testutil.Product(s.T(), s.db, "1", 50000, 10, 1)

	competing := &model.Order{
		ID:              "placed-elsewhere",
		IdempotencyKey:  "abc-1",
		Status:          model.OrderStatusPlaced,
		Subtotal:        50000,
		Tax:             3750,
		Total:           53750,
		Currency:        "NGN",
		CustomerName:    ada.Name,
		CustomerEmail:   ada.Email,
		CustomerAddress: ada.Address,
	}
	s.Require().NoError(s.orderRepo.Create(s.ctx, s.db, competing))
	s.Require().NoError(s.orderRepo.CreateOrderItems(s.ctx, s.db, []*model.OrderItem{
		{OrderID: competing.ID, ProductID: "1", Name: "Product 1", UnitPrice: 50000, Quantity: 1, LineSubtotal: 50000},
	}))

	// both lookups before the insert miss; the unique index catches it
	repo := &staleOrderRepo{OrderRepository: s.orderRepo, misses: 2}
	svc := newCheckoutService(s.db, repo, s.store, false)

	res, err := svc.Checkout(s.ctx, "abc-1", checkoutRequest(ada, line("1", 2)))
	s.Require().NoError(err)
	s.True(res.Replayed)
	s.Equal("placed-elsewhere", res.Response.OrderID)
	s.Equal(int64(53750), res.Response.Totals.TotalKobo)
	s.Zero(repo.misses)

	s.Equal(int64(10), testutil.Stock(s.T(), s.db, "1"))
	s.Equal(int64(1), testutil.OrderCount(s.T(), s.db))

	cached, found, err := s.store.Get(s.ctx, "abc-1")
	s.Require().NoError(err)
	s.True(found)
	s.Equal("placed-elsewhere", cached.OrderID)
}

func (s *CheckoutServiceTestSuite) TestTaxRoundsHalfUp() {
	testutil.Product(s.T(), s.db, "a", 999, 10, 1)

	res, err := s.svc.Checkout(s.ctx, "abc-1", checkoutRequest(ada, line("a", 1)))
	s.Require().NoError(err)
	s.Equal(dto.CheckoutTotals{SubtotalKobo: 999, TaxKobo: 75, TotalKobo: 1074}, res.Response.Totals)
}

func TestConcurrentCheckoutsOnFileDatabase(t *testing.T) {
	db := testutil.NewFileDB(t)
	testutil.Product(t, db, "a", 1000, 100, 1)

	svc := newCheckoutService(db, repository.NewOrderRepository(db), idempotency.NewMemoryStore(100, time.Hour), false)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Checkout(context.Background(), fmt.Sprintf("key-%d", i), checkoutRequest(ada, line("a", 2)))
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "checkout %d", i)
	}
	require.Equal(t, int64(100-2*n), testutil.Stock(t, db, "a"))
	require.Equal(t, int64(n), testutil.OrderCount(t, db))
}
