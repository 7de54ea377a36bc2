package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"storefront-api/internal/apperror"
	"storefront-api/internal/dto"
	"storefront-api/internal/metrics"
	"storefront-api/internal/middleware"
	"storefront-api/internal/service"
)

const ReplayedHeader = "Idempotent-Replayed"

type CheckoutHandler struct {
	checkoutService service.CheckoutService
	metrics         *metrics.Metrics
}

func NewCheckoutHandler(checkoutService service.CheckoutService, m *metrics.Metrics) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		metrics:         m,
	}
}

// Checkout godoc
// @Summary      place an order
// @Description  Places an order exactly once per Idempotency-Key. A repeated key replays the first response with status 200 and the Idempotent-Replayed header.
// @Tags         checkout
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header    string                true  "client-chosen key identifying this checkout attempt"
// @Param        request          body      dto.CheckoutRequest   true  "customer and cart lines"
// @Success      201              {object}  dto.CheckoutResponse  "placed"
// @Success      200              {object}  dto.CheckoutResponse  "replayed"
// @Failure      400              {object}  dto.ErrorResponse     "MISSING_IDEMPOTENCY_KEY, VALIDATION, PRODUCT_NOT_FOUND, INVALID_QUANTITY_STEP, INSUFFICIENT_STOCK"
// @Failure      409              {object}  dto.ErrorResponse     "LOCK_TIMEOUT"
// @Failure      500              {object}  dto.ErrorResponse     "SERVER_ERROR"
// @Router       /checkout [post]
func (h *CheckoutHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	key := middleware.IdempotencyKey(c)

	var req dto.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		h.metrics.ObserveCheckout(string(apperror.CodeValidation))
		return apperror.Validation("Malformed request body", nil)
	}

	res, err := h.checkoutService.Checkout(ctx, key, &req)
	if err != nil {
		h.metrics.ObserveCheckout(string(apperror.CodeOf(err)))
		return err
	}

	if res.Replayed {
		h.metrics.ObserveCheckout("replayed")
		c.Response().Header().Set(ReplayedHeader, "true")
		return c.JSON(http.StatusOK, res.Response)
	}

	h.metrics.ObserveCheckout("placed")
	return c.JSON(http.StatusCreated, res.Response)
}
