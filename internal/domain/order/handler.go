package order

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medicore/medicore/internal/platform/auth"
	"github.com/medicore/medicore/pkg/pagination"
	"github.com/medicore/medicore/pkg/respond"
)

type Handler struct {
	svc  *Service
	rbac *auth.RBAC
}

func NewHandler(svc *Service, rbac *auth.RBAC) *Handler {
	return &Handler{svc: svc, rbac: rbac}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/orders")
	read := h.rbac.Require("doctor", "nurse", "pharmacist", "lab_tech", "radiologist")

	g.POST("", h.Place, h.rbac.Require("doctor"))
	g.GET("", h.List, read)
	g.GET("/:id", h.Get, read)
	g.PUT("/:id/status", h.SetStatus,
		h.rbac.Require("doctor", "pharmacist", "lab_tech", "radiologist"))
}

type placeRequest struct {
	PatientID string `json:"patientId"`
	OrderType string `json:"orderType"`
	Detail    string `json:"detail"`
}

func (h *Handler) Place(c echo.Context) error {
	var req placeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var errs []respond.FieldError
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		errs = append(errs, respond.FieldError{Field: "patientId", Message: "must be a valid id"})
	}
	if !ValidType(req.OrderType) {
		errs = append(errs, respond.FieldError{Field: "orderType", Message: "must be pharmacy, lab or radiology"})
	}
	if strings.TrimSpace(req.Detail) == "" {
		errs = append(errs, respond.FieldError{Field: "detail", Message: "detail is required"})
	}
	if len(errs) > 0 {
		return respond.ValidationError(c, errs...)
	}

	identity := auth.IdentityFromContext(c.Request().Context())
	orderedBy, err := uuid.Parse(identity.AccountID)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	o := &Order{
		PatientID: patientID,
		OrderedBy: orderedBy,
		OrderType: req.OrderType,
		Detail:    strings.TrimSpace(req.Detail),
	}
	if err := h.svc.Place(c.Request().Context(), o); err != nil {
		return mapErr(err)
	}
	return respond.OK(c, http.StatusCreated, o)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, k := range []string{"patient_id", "type", "status"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	if v, ok := params["patient_id"]; ok {
		if _, err := uuid.Parse(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
	}
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not list orders")
	}
	return respond.OK(c, http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, http.StatusOK, o)
}

func (h *Handler) SetStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if !ValidStatus(req.Status) {
		return respond.ValidationError(c,
			respond.FieldError{Field: "status", Message: "must be ordered, in_progress, completed or cancelled"})
	}

	o, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	// Only the ordering side and the type's fulfilling role may move
	// this order.
	if err := h.rbac.Check(c, "doctor", Fulfiller(o.OrderType)); err != nil {
		return err
	}

	updated, err := h.svc.SetStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, http.StatusOK, updated)
}

func mapErr(err error) error {
	var statusErr *StatusError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	case errors.Is(err, ErrPatientMissing):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.As(err, &statusErr):
		return echo.NewHTTPError(http.StatusConflict, statusErr.Error())
	}
	return err
}
