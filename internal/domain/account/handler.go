package account

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medicore/medicore/internal/platform/auth"
	"github.com/medicore/medicore/pkg/pagination"
	"github.com/medicore/medicore/pkg/respond"
)

// Handler serves account administration. All of it is admin-only.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, rbac *auth.RBAC) {
	g := api.Group("/accounts", rbac.Require(RoleAdmin))
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Deactivate)
	g.POST("/:id/unlock", h.Unlock)
}

type createAccountRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createAccountRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	acct, err := h.svc.Create(c.Request().Context(), CreateInput{
		Email:    req.Email,
		FullName: req.FullName,
		Role:     req.Role,
		Password: req.Password,
	}, actorID(c), metaFrom(c))
	if err != nil {
		return mapError(c, err)
	}
	return respond.OK(c, http.StatusCreated, acct)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, k := range []string{"role", "active", "q"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	items, total, err := h.svc.List(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not list accounts")
	}
	return respond.OK(c, http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	acct, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	return respond.OK(c, http.StatusOK, acct)
}

func (h *Handler) Deactivate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Deactivate(c.Request().Context(), id, actorID(c), metaFrom(c)); err != nil {
		return mapError(c, err)
	}
	return respond.Message(c, http.StatusOK, "account deactivated")
}

func (h *Handler) Unlock(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Unlock(c.Request().Context(), id, actorID(c), metaFrom(c)); err != nil {
		return mapError(c, err)
	}
	return respond.Message(c, http.StatusOK, "account unlocked")
}
