package appointment

import (
	"errors"
	"net/http"
	"time"

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
	g := api.Group("/appointments")
	read := h.rbac.Require("admin", "receptionist", "doctor", "nurse")

	g.POST("", h.Book, h.rbac.Require("admin", "receptionist"))
	g.GET("", h.List, read)
	g.GET("/:id", h.Get, read)
	g.PUT("/:id/status", h.SetStatus, read)
}

type bookRequest struct {
	PatientID  string  `json:"patientId"`
	ProviderID string  `json:"providerId"`
	StartsAt   string  `json:"startsAt"`
	EndsAt     string  `json:"endsAt"`
	Reason     *string `json:"reason"`
}

func (h *Handler) Book(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var errs []respond.FieldError
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		errs = append(errs, respond.FieldError{Field: "patientId", Message: "must be a valid id"})
	}
	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		errs = append(errs, respond.FieldError{Field: "providerId", Message: "must be a valid id"})
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		errs = append(errs, respond.FieldError{Field: "startsAt", Message: "must be an RFC 3339 timestamp"})
	}
	endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil {
		errs = append(errs, respond.FieldError{Field: "endsAt", Message: "must be an RFC 3339 timestamp"})
	} else if !endsAt.After(startsAt) {
		errs = append(errs, respond.FieldError{Field: "endsAt", Message: "must be after startsAt"})
	}
	if len(errs) > 0 {
		return respond.ValidationError(c, errs...)
	}

	appt := &Appointment{
		PatientID:  patientID,
		ProviderID: providerID,
		StartsAt:   startsAt.UTC(),
		EndsAt:     endsAt.UTC(),
		Reason:     req.Reason,
	}
	if err := h.svc.Book(c.Request().Context(), appt); err != nil {
		return mapErr(err)
	}
	return respond.OK(c, http.StatusCreated, appt)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, k := range []string{"patient_id", "provider_id", "status", "date"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	if v, ok := params["patient_id"]; ok {
		if _, err := uuid.Parse(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
	}
	if v, ok := params["provider_id"]; ok {
		if _, err := uuid.Parse(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid provider_id")
		}
	}
	if v, ok := params["date"]; ok {
		if _, err := time.Parse("2006-01-02", v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		}
	}
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not list appointments")
	}
	return respond.OK(c, http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, http.StatusOK, appt)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) SetStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if !ValidStatus(req.Status) {
		return respond.ValidationError(c,
			respond.FieldError{Field: "status", Message: "must be scheduled, completed, cancelled or no_show"})
	}
	// Cancelling is a booking-desk decision; clinical staff only mark
	// outcomes.
	if req.Status == StatusCancelled {
		if err := h.rbac.Check(c, "admin", "receptionist"); err != nil {
			return err
		}
	}
	appt, err := h.svc.SetStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, http.StatusOK, appt)
}

func mapErr(err error) error {
	var statusErr *StatusError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrSlotTaken):
		return echo.NewHTTPError(http.StatusConflict, "provider already booked for this time")
	case errors.Is(err, ErrPatientMissing):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrProviderMissing):
		return echo.NewHTTPError(http.StatusNotFound, "provider not found")
	case errors.As(err, &statusErr):
		return echo.NewHTTPError(http.StatusConflict, statusErr.Error())
	}
	return err
}
