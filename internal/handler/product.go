package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"storefront-api/internal/apperror"
	"storefront-api/internal/dto"
	"storefront-api/internal/repository"
	"storefront-api/internal/service"
)

type ProductHandler struct {
	catalogService service.CatalogService
}

func NewProductHandler(catalogService service.CatalogService) *ProductHandler {
	return &ProductHandler{
		catalogService: catalogService,
	}
}

func queryError(err error) error {
	var bindErr *echo.BindingError
	if errors.As(err, &bindErr) {
		return apperror.Validation("Invalid query parameter", map[string]string{bindErr.Field: "invalid"})
	}
	return apperror.Validation("Invalid query parameters", nil)
}

// ListProducts godoc
// @Summary  search and filter products
// @Tags     catalog
// @Produce  json
// @Param    q                  query     string  false  "matches name, description or brand"
// @Param    category           query     string  false  " "
// @Param    brand              query     string  false  " "
// @Param    minPriceKobo       query     int     false  " "
// @Param    maxPriceKobo       query     int     false  " "
// @Param    inStock            query     bool    false  " "
// @Param    financingEligible  query     bool    false  " "
// @Param    sort               query     string  false  " "  Enums(relevance, price_asc, price_desc, newest)
// @Param    page               query     int     false  " "
// @Param    limit              query     int     false  " "
// @Success  200                {object}  dto.Page[model.Product]
// @Failure  400                {object}  dto.ErrorResponse  "VALIDATION"
// @Router   /products [get]
func (h *ProductHandler) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()

	filter := repository.ProductFilter{
		Query:    c.QueryParam("q"),
		Category: c.QueryParam("category"),
		Brand:    c.QueryParam("brand"),
		Sort:     c.QueryParam("sort"),
	}
	err := echo.QueryParamsBinder(c).
		Int64("minPriceKobo", &filter.MinPrice).
		Int64("maxPriceKobo", &filter.MaxPrice).
		Bool("inStock", &filter.InStock).
		Bool("financingEligible", &filter.FinancingEligible).
		Int("page", &filter.Page).
		Int("limit", &filter.Limit).
		BindError()
	if err != nil {
		return queryError(err)
	}

	page, err := h.catalogService.ListProducts(ctx, filter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, page)
}

// GetProduct godoc
// @Summary  get a product
// @Tags     catalog
// @Produce  json
// @Param    id   path      string  true  "product id"
// @Success  200  {object}  model.Product
// @Failure  404  {object}  dto.ErrorResponse  "NOT_FOUND"
// @Router   /products/{id} [get]
func (h *ProductHandler) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()

	product, err := h.catalogService.GetProduct(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, product)
}

// ListBrands godoc
// @Summary  list distinct brands
// @Tags     catalog
// @Produce  json
// @Success  200  {object}  dto.ListResponse[string]
// @Router   /products/brands [get]
func (h *ProductHandler) ListBrands(c echo.Context) error {
	ctx := c.Request().Context()

	brands, err := h.catalogService.Brands(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.ListResponse[string]{Data: brands})
}
