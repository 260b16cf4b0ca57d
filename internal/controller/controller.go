package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/blogauth/internal/models"
	"github.com/rryowa/blogauth/internal/service"
	"github.com/rryowa/blogauth/internal/util"
)

type Controller struct {
	zapLogger   *zap.SugaredLogger
	authService *service.AuthService
	cookies     *util.CookieConfig
}

func NewController(logger *zap.SugaredLogger, authService *service.AuthService, cookies *util.CookieConfig) *Controller {
	return &Controller{
		zapLogger:   logger,
		authService: authService,
		cookies:     cookies,
	}
}

// (GET /api/ping).
func (c *Controller) CheckServer(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"msg": "working successfully"})
}

// (POST /api/register).
func (c *Controller) Register(ctx echo.Context) error {
	var req models.RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewValidationError("invalid request body")
	}

	session, err := c.authService.Register(ctx.Request().Context(), req, clientMeta(ctx))
	if err != nil {
		return err
	}

	c.setSessionCookies(ctx, session)
	return ctx.JSON(http.StatusCreated, models.AuthResponse{User: &session.User, Auth: true})
}

// (POST /api/login).
func (c *Controller) Login(ctx echo.Context) error {
	var req models.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewValidationError("invalid request body")
	}

	session, err := c.authService.Login(ctx.Request().Context(), req, clientMeta(ctx))
	if err != nil {
		return err
	}

	c.setSessionCookies(ctx, session)
	return ctx.JSON(http.StatusOK, models.AuthResponse{User: &session.User, Auth: true})
}

// (POST /api/logout), behind the auth gate.
func (c *Controller) Logout(ctx echo.Context) error {
	user, ok := CurrentUser(ctx)
	if !ok {
		return util.NewAuthenticationError("unauthorized", nil)
	}

	err := c.authService.Logout(
		ctx.Request().Context(),
		user.ID,
		cookieValue(ctx, models.AccessTokenCookie),
		cookieValue(ctx, models.RefreshTokenCookie),
		clientMeta(ctx),
	)
	if err != nil {
		return err
	}

	c.clearSessionCookies(ctx)
	return ctx.JSON(http.StatusOK, models.AuthResponse{User: nil, Auth: false})
}

// (GET /api/refresh).
func (c *Controller) Refresh(ctx echo.Context) error {
	session, err := c.authService.Refresh(ctx.Request().Context(), cookieValue(ctx, models.RefreshTokenCookie))
	if err != nil {
		return err
	}

	c.setSessionCookies(ctx, session)
	return ctx.JSON(http.StatusOK, models.AuthResponse{User: &session.User, Auth: true})
}

// (GET /api/me), behind the auth gate.
func (c *Controller) Me(ctx echo.Context) error {
	user, ok := CurrentUser(ctx)
	if !ok {
		return util.NewAuthenticationError("unauthorized", nil)
	}
	return ctx.JSON(http.StatusOK, models.AuthResponse{User: user, Auth: true})
}

// CurrentUser returns the identity the auth gate attached to the request.
func CurrentUser(ctx echo.Context) (*models.UserView, bool) {
	user, ok := ctx.Get(models.MwUserKey).(*models.UserView)
	return user, ok && user != nil
}

func clientMeta(ctx echo.Context) models.ClientMeta {
	return models.ClientMeta{
		UserAgent: ctx.Request().UserAgent(),
		IPAddress: ctx.RealIP(),
	}
}
