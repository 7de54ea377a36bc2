package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"storefront-api/internal/service"
)

type OrderHandler struct {
	orderService service.OrderService
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

// ListOrders godoc
// @Summary  list orders, newest first
// @Tags     orders
// @Produce  json
// @Param    page   query     int  false  "page number, from 1"
// @Param    limit  query     int  false  "page size, 1..100"
// @Success  200    {object}  dto.Page[model.Order]
// @Failure  400    {object}  dto.ErrorResponse  "VALIDATION"
// @Router   /orders [get]
func (h *OrderHandler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()

	var page, limit int
	err := echo.QueryParamsBinder(c).
		Int("page", &page).
		Int("limit", &limit).
		BindError()
	if err != nil {
		return queryError(err)
	}

	orders, err := h.orderService.ListOrders(ctx, page, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, orders)
}

// GetOrder godoc
// @Summary  get an order with its items
// @Tags     orders
// @Produce  json
// @Param    id   path      string  true  "order id"
// @Success  200  {object}  model.Order
// @Failure  404  {object}  dto.ErrorResponse  "NOT_FOUND"
// @Router   /orders/{id} [get]
func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()

	order, err := h.orderService.GetOrder(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, order)
}
