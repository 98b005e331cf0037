package audit

import (
	"net/http"

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

// RegisterRoutes mounts the trail under the API group. Reading the
// trail is admin-only.
func (h *Handler) RegisterRoutes(api *echo.Group, rbac *auth.RBAC) {
	api.GET("/audit-events", h.List, rbac.Require("admin"))
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	if v := c.QueryParam("actor_id"); v != "" {
		if _, err := uuid.Parse(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid actor_id")
		}
		params["actor_id"] = v
	}
	if v := c.QueryParam("action"); v != "" {
		params["action"] = v
	}
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not list audit events")
	}
	return respond.OK(c, http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
