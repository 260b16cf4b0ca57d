package api

import (
	"context"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/rryowa/blogauth/internal/models"
	"github.com/rryowa/blogauth/internal/util"
)

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.UserView, error)
}

// AuthGate lets a request through only with both session cookies and a valid
// access token. The refresh cookie must be present but is not verified here,
// and an expired access token is never refreshed silently: the client has to
// call /refresh itself.
func AuthGate(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			accessToken := cookieValue(c, models.AccessTokenCookie)
			refreshToken := cookieValue(c, models.RefreshTokenCookie)
			if accessToken == "" || refreshToken == "" {
				return util.NewAuthenticationError("unauthorized", nil)
			}

			user, err := auth.Authenticate(c.Request().Context(), accessToken)
			if err != nil {
				return err
			}

			c.Set(models.MwUserKey, user)

			return next(c)
		}
	}
}

func cookieValue(c echo.Context, name string) string {
	cookie, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func GetLoggerMiddlewareConfig(a *API) echomiddleware.RequestLoggerConfig {
	return echomiddleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogError:   true,
		LogLatency: true,

		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", c.Request().Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
				a.log.Errorw("Request", fields...)
			} else {
				a.log.Infow("Request", fields...)
			}
			return nil
		},
	}
}
