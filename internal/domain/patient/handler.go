package patient

import (
	"errors"
	"net/http"
	"strings"
	"time"

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
	g := api.Group("/patients")
	read := rbac.Require("admin", "receptionist", "doctor", "nurse")
	write := rbac.Require("admin", "receptionist")

	g.POST("", h.Create, write)
	g.GET("", h.List, read)
	g.GET("/:id", h.Get, read)
	g.PUT("/:id", h.Update, write)
	g.DELETE("/:id", h.Deactivate, write)
}

type patientRequest struct {
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	DateOfBirth string  `json:"dateOfBirth"`
	Gender      string  `json:"gender"`
	Phone       string  `json:"phone"`
	Email       *string `json:"email"`
	Address     *string `json:"address"`
}

// validate checks the request and returns the parsed birth date.
func (r *patientRequest) validate() (time.Time, []respond.FieldError) {
	var errs []respond.FieldError
	if strings.TrimSpace(r.FirstName) == "" {
		errs = append(errs, respond.FieldError{Field: "firstName", Message: "first name is required"})
	}
	if strings.TrimSpace(r.LastName) == "" {
		errs = append(errs, respond.FieldError{Field: "lastName", Message: "last name is required"})
	}
	var dob time.Time
	if r.DateOfBirth == "" {
		errs = append(errs, respond.FieldError{Field: "dateOfBirth", Message: "date of birth is required"})
	} else {
		var err error
		dob, err = time.Parse("2006-01-02", r.DateOfBirth)
		if err != nil {
			errs = append(errs, respond.FieldError{Field: "dateOfBirth", Message: "must be formatted YYYY-MM-DD"})
		}
	}
	if !ValidGender(r.Gender) {
		errs = append(errs, respond.FieldError{Field: "gender", Message: "must be male, female, other or unknown"})
	}
	if strings.TrimSpace(r.Phone) == "" {
		errs = append(errs, respond.FieldError{Field: "phone", Message: "phone is required"})
	}
	if r.Email != nil && !strings.Contains(*r.Email, "@") {
		errs = append(errs, respond.FieldError{Field: "email", Message: "must be a valid email address"})
	}
	return dob, errs
}

func (r *patientRequest) toPatient(dob time.Time) *Patient {
	return &Patient{
		FirstName:   strings.TrimSpace(r.FirstName),
		LastName:    strings.TrimSpace(r.LastName),
		DateOfBirth: dob,
		Gender:      r.Gender,
		Phone:       strings.TrimSpace(r.Phone),
		Email:       r.Email,
		Address:     r.Address,
	}
}

func (h *Handler) Create(c echo.Context) error {
	var req patientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	dob, errs := req.validate()
	if len(errs) > 0 {
		return respond.ValidationError(c, errs...)
	}
	p := req.toPatient(dob)
	if err := h.svc.Register(c.Request().Context(), p); err != nil {
		return mapErr(err)
	}
	return respond.OK(c, http.StatusCreated, p)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, k := range []string{"q", "gender", "active"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not list patients")
	}
	return respond.OK(c, http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, http.StatusOK, p)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req patientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	dob, errs := req.validate()
	if len(errs) > 0 {
		return respond.ValidationError(c, errs...)
	}
	p := req.toPatient(dob)
	p.ID = id
	if err := h.svc.Update(c.Request().Context(), p); err != nil {
		return mapErr(err)
	}
	updated, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapErr(err)
	}
	return respond.OK(c, http.StatusOK, updated)
}

func (h *Handler) Deactivate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Deactivate(c.Request().Context(), id); err != nil {
		return mapErr(err)
	}
	return respond.Message(c, http.StatusOK, "patient deactivated")
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrPhoneTaken):
		return echo.NewHTTPError(http.StatusConflict, "phone already registered")
	case errors.Is(err, ErrMRNTaken):
		return echo.NewHTTPError(http.StatusConflict, "mrn already assigned")
	}
	return err
}
