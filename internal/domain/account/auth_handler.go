package account

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medicore/medicore/internal/platform/auth"
	"github.com/medicore/medicore/pkg/respond"
)

// AuthHandler serves the credential endpoints.
type AuthHandler struct {
	guard *Guard
}

func NewAuthHandler(guard *Guard) *AuthHandler {
	return &AuthHandler{guard: guard}
}

// RegisterRoutes mounts login on the public auth group and the
// session-bound operations on the authenticated one.
func (h *AuthHandler) RegisterRoutes(public *echo.Group, session *echo.Group) {
	public.POST("/login", h.Login)
	session.POST("/logout", h.Logout)
	session.POST("/change-password", h.ChangePassword)
	session.POST("/enable-2fa", h.EnableTwoFactor)
	session.POST("/verify-2fa-setup", h.VerifyTwoFactorSetup)
	session.POST("/disable-2fa", h.DisableTwoFactor)
}

type loginRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	TwoFactorToken string `json:"twoFactorToken"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	var fieldErrs []respond.FieldError
	if strings.TrimSpace(req.Email) == "" {
		fieldErrs = append(fieldErrs, respond.FieldError{Field: "email", Message: "email required"})
	}
	if req.Password == "" {
		fieldErrs = append(fieldErrs, respond.FieldError{Field: "password", Message: "password required"})
	}
	if len(fieldErrs) > 0 {
		return respond.ValidationError(c, fieldErrs...)
	}

	res, err := h.guard.Login(c.Request().Context(), LoginInput{
		Email:         req.Email,
		Password:      req.Password,
		TwoFactorCode: req.TwoFactorToken,
	}, metaFrom(c))
	if err != nil {
		return mapError(c, err)
	}
	if res.TwoFactorRequired {
		return respond.OK(c, http.StatusOK, echo.Map{"twoFactorRequired": true})
	}
	return respond.OK(c, http.StatusOK, echo.Map{"token": res.Token, "user": res.Account})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	identity := auth.IdentityFromContext(c.Request().Context())
	if identity == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if err := h.guard.Logout(c.Request().Context(), identity, metaFrom(c)); err != nil {
		return mapError(c, err)
	}
	return respond.Message(c, http.StatusOK, "logged out")
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.guard.ChangePassword(c.Request().Context(), caller, req.CurrentPassword, req.NewPassword, metaFrom(c)); err != nil {
		return mapError(c, err)
	}
	return respond.Message(c, http.StatusOK, "password changed")
}

func (h *AuthHandler) EnableTwoFactor(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	secret, uri, err := h.guard.EnrollTwoFactor(c.Request().Context(), caller, metaFrom(c))
	if err != nil {
		return mapError(c, err)
	}
	return respond.OK(c, http.StatusOK, echo.Map{"secret": secret, "otpauthUrl": uri})
}

type verifyTwoFactorRequest struct {
	Token string `json:"token"`
}

func (h *AuthHandler) VerifyTwoFactorSetup(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	var req verifyTwoFactorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.guard.VerifyTwoFactorSetup(c.Request().Context(), caller, req.Token, metaFrom(c)); err != nil {
		return mapError(c, err)
	}
	return respond.Message(c, http.StatusOK, "two-factor authentication enabled")
}

type disableTwoFactorRequest struct {
	Password string `json:"password"`
}

func (h *AuthHandler) DisableTwoFactor(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	var req disableTwoFactorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.guard.DisableTwoFactor(c.Request().Context(), caller, req.Password, metaFrom(c)); err != nil {
		return mapError(c, err)
	}
	return respond.Message(c, http.StatusOK, "two-factor authentication disabled")
}

func metaFrom(c echo.Context) Meta {
	rid, _ := c.Get("request_id").(string)
	return Meta{
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
		RequestID: rid,
	}
}

// callerID resolves the authenticated caller or fails the request the
// same way a missing token would.
func callerID(c echo.Context) (uuid.UUID, error) {
	identity := auth.IdentityFromContext(c.Request().Context())
	if identity == nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(identity.AccountID)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return id, nil
}

func actorID(c echo.Context) *uuid.UUID {
	identity := auth.IdentityFromContext(c.Request().Context())
	if identity == nil {
		return nil
	}
	if id, err := uuid.Parse(identity.AccountID); err == nil {
		return &id
	}
	return nil
}

// mapError translates domain errors to transport errors, keeping the
// generic shape for credential failures.
func mapError(c echo.Context, err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return respond.ValidationError(c, respond.FieldError{Field: verr.Field, Message: verr.Message})
	}
	var locked *LockedError
	if errors.As(err, &locked) {
		return echo.NewHTTPError(http.StatusLocked, locked.Error())
	}
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, "email already registered")
	case errors.Is(err, ErrTwoFactorEnabled):
		return echo.NewHTTPError(http.StatusConflict, "two-factor authentication already enabled")
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "account not found")
	}
	return err
}
