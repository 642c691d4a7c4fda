package pharmacy

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinichq/clinic/internal/platform/auth"
	"github.com/clinichq/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/pharmacy", auth.RequireRole("pharmacist"))

	g.GET("/inventory", h.ListItems)
	g.GET("/inventory/:id", h.GetItem)
	g.POST("/inventory", h.CreateItem)
	g.PATCH("/inventory/:id", h.UpdateItem)
	g.DELETE("/inventory/:id", h.DeleteItem)

	g.GET("/dispensations", h.ListDispensations)
	g.GET("/dispensations/:id", h.GetDispensation)
	g.POST("/dispensations", h.CreateDispensation)
}

// -- Inventory handlers --

func (h *Handler) CreateItem(c echo.Context) error {
	var item InventoryItem
	if err := c.Bind(&item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateItem(c.Request().Context(), &item); err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *Handler) GetItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	item, err := h.svc.GetItem(c.Request().Context(), id)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) ListItems(c echo.Context) error {
	pg := pagination.FromContext(c)
	lowStock := c.QueryParam("low_stock") == "true"

	items, total, err := h.svc.ListItems(c.Request().Context(), lowStock, pg.Limit, pg.Offset)
	if err != nil {
		return domainError(err)
	}
	if items == nil {
		items = []*InventoryItem{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in UpdateItemInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, err := h.svc.UpdateItem(c.Request().Context(), id, &in)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) DeleteItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteItem(c.Request().Context(), id); err != nil {
		return domainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Dispensation handlers --

type createDispensationRequest struct {
	PrescriptionID  uuid.UUID `json:"prescription_id"`
	InventoryItemID uuid.UUID `json:"inventory_item_id"`
	Quantity        int       `json:"quantity"`
}

func (h *Handler) CreateDispensation(c echo.Context) error {
	var req createDispensationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// The acting user always comes from the verified token, never the body.
	actingUserID := auth.UserIDFromContext(c.Request().Context())

	d, err := h.svc.Fulfill(c.Request().Context(),
		req.PrescriptionID, req.InventoryItemID, req.Quantity, actingUserID)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDispensation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.GetDispensation(c.Request().Context(), id)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDispensations(c echo.Context) error {
	pg := pagination.FromContext(c)

	var filter DispensationFilter
	if v := c.QueryParam("inventory_item_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid inventory_item_id")
		}
		filter.InventoryItemID = &id
	}
	if v := c.QueryParam("prescription_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid prescription_id")
		}
		filter.PrescriptionID = &id
	}

	items, total, err := h.svc.ListDispensations(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return domainError(err)
	}
	if items == nil {
		items = []*DispensationDetail{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// domainError maps typed domain errors onto HTTP status codes. Unknown errors
// become 500s without leaking internals to the client.
func domainError(err error) error {
	var stockErr *InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		return echo.NewHTTPError(http.StatusConflict, map[string]interface{}{
			"error":     stockErr.Error(),
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		})
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrItemNotFound), errors.Is(err, ErrDispensationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateName), errors.Is(err, ErrItemInUse), errors.Is(err, ErrStockConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
