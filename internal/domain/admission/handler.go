package admission

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
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, rbac *auth.RBAC) {
	g := api.Group("/admissions", rbac.Require("admin", "doctor", "nurse"))
	g.POST("", h.Admit)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id/discharge", h.Discharge)
}

type admitRequest struct {
	PatientID   string `json:"patientId"`
	Ward        string `json:"ward"`
	Bed         string `json:"bed"`
	AttendingID string `json:"attendingId"`
	Diagnosis   string `json:"diagnosis"`
}

func (h *Handler) Admit(c echo.Context) error {
	var req admitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var errs []respond.FieldError
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		errs = append(errs, respond.FieldError{Field: "patientId", Message: "must be a valid id"})
	}
	attendingID, err := uuid.Parse(req.AttendingID)
	if err != nil {
		errs = append(errs, respond.FieldError{Field: "attendingId", Message: "must be a valid id"})
	}
	if strings.TrimSpace(req.Ward) == "" {
		errs = append(errs, respond.FieldError{Field: "ward", Message: "ward is required"})
	}
	if strings.TrimSpace(req.Bed) == "" {
		errs = append(errs, respond.FieldError{Field: "bed", Message: "bed is required"})
	}
	if strings.TrimSpace(req.Diagnosis) == "" {
		errs = append(errs, respond.FieldError{Field: "diagnosis", Message: "diagnosis is required"})
	}
	if len(errs) > 0 {
		return respond.ValidationError(c, errs...)
	}

	adm := &Admission{
		PatientID:   patientID,
		Ward:        strings.TrimSpace(req.Ward),
		Bed:         strings.TrimSpace(req.Bed),
		AttendingID: attendingID,
		Diagnosis:   strings.TrimSpace(req.Diagnosis),
	}
	if err := h.svc.Admit(c.Request().Context(), adm); err != nil {
		return mapErr(err)
	}
	return respond.OK(c, http.StatusCreated, adm)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, k := range []string{"ward", "status", "patient_id"} {
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
		return echo.NewHTTPError(http.StatusInternalServerError, "could not list admissions")
	}
	return respond.OK(c, http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	adm, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, http.StatusOK, adm)
}

func (h *Handler) Discharge(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	adm, err := h.svc.Discharge(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, http.StatusOK, adm)
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "admission not found")
	case errors.Is(err, ErrBedOccupied):
		return echo.NewHTTPError(http.StatusConflict, "bed already occupied")
	case errors.Is(err, ErrPatientAdmitted):
		return echo.NewHTTPError(http.StatusConflict, "patient already admitted")
	case errors.Is(err, ErrAlreadyDischarged):
		return echo.NewHTTPError(http.StatusConflict, "admission already discharged")
	case errors.Is(err, ErrPatientMissing):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrAttendingMissing):
		return echo.NewHTTPError(http.StatusNotFound, "attending not found")
	}
	return err
}
