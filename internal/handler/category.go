package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"storefront-api/internal/dto"
	"storefront-api/internal/service"
)

type CategoryHandler struct {
	catalogService service.CatalogService
}

func NewCategoryHandler(catalogService service.CatalogService) *CategoryHandler {
	return &CategoryHandler{
		catalogService: catalogService,
	}
}

// ListCategories godoc
// @Summary  list product categories
// @Tags     catalog
// @Produce  json
// @Success  200  {object}  dto.ListResponse[string]
// @Router   /categories [get]
func (h *CategoryHandler) ListCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.ListResponse[string]{Data: h.catalogService.Categories()})
}
