package invoice

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medicore/medicore/internal/platform/auth"
	"github.com/medicore/medicore/pkg/pagination"
	"github.com/medicore/medicore/pkg/respond"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the billing surface. The front desk may raise
// an invoice at checkout; settling and voiding stay with billing
// staff.
func (h *Handler) RegisterRoutes(api *echo.Group, rbac *auth.RBAC) {
	g := api.Group("/invoices")
	billing := rbac.Require("admin", "accountant")

	g.POST("", h.Issue, rbac.Require("admin", "accountant", "receptionist"))
	g.GET("", h.List, billing)
	g.GET("/:id", h.Get, billing)
	g.POST("/:id/payments", h.Pay, billing)
	g.POST("/:id/void", h.Void, billing)
}

type lineItemRequest struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	AmountCents int64  `json:"amountCents"`
}

type issueRequest struct {
	PatientID string            `json:"patientId"`
	Items     []lineItemRequest `json:"items"`
}

func (r *issueRequest) validate() []respond.FieldError {
	var errs []respond.FieldError
	if _, err := uuid.Parse(r.PatientID); err != nil {
		errs = append(errs, respond.FieldError{Field: "patientId", Message: "must be a valid id"})
	}
	if len(r.Items) == 0 {
		errs = append(errs, respond.FieldError{Field: "items", Message: "at least one item is required"})
	}
	for i, item := range r.Items {
		if strings.TrimSpace(item.Description) == "" {
			errs = append(errs, respond.FieldError{
				Field: fmt.Sprintf("items[%d].description", i), Message: "description is required"})
		}
		if item.Quantity < 1 {
			errs = append(errs, respond.FieldError{
				Field: fmt.Sprintf("items[%d].quantity", i), Message: "must be at least 1"})
		}
		if item.AmountCents < 0 {
			errs = append(errs, respond.FieldError{
				Field: fmt.Sprintf("items[%d].amountCents", i), Message: "must not be negative"})
		}
	}
	return errs
}

func (h *Handler) Issue(c echo.Context) error {
	var req issueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if errs := req.validate(); len(errs) > 0 {
		return respond.ValidationError(c, errs...)
	}

	patientID, _ := uuid.Parse(req.PatientID)
	inv := &Invoice{PatientID: patientID}
	for _, item := range req.Items {
		inv.Items = append(inv.Items, LineItem{
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			AmountCents: item.AmountCents,
		})
	}
	if err := h.svc.Issue(c.Request().Context(), inv); err != nil {
		return mapErr(err)
	}
	return respond.OK(c, http.StatusCreated, inv)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, k := range []string{"patient_id", "status"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	if v, ok := params["patient_id"]; ok {
		if _, err := uuid.Parse(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
	}
	if v, ok := params["status"]; ok && !ValidStatus(v) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status filter")
	}
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not list invoices")
	}
	return respond.OK(c, http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	inv, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, http.StatusOK, inv)
}

func (h *Handler) Pay(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	inv, err := h.svc.Settle(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, http.StatusOK, inv)
}

func (h *Handler) Void(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	inv, err := h.svc.Void(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, http.StatusOK, inv)
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "invoice not found")
	case errors.Is(err, ErrNotPending):
		return echo.NewHTTPError(http.StatusConflict, "invoice is not pending")
	case errors.Is(err, ErrPatientMissing):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return err
}
