package controller

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rryowa/blogauth/internal/models"
	"github.com/rryowa/blogauth/internal/service"
)

func (c *Controller) setSessionCookies(ctx echo.Context, session *service.Session) {
	ctx.SetCookie(c.newCookie(models.AccessTokenCookie, session.AccessToken, int(c.cookies.MaxAge/time.Second)))
	ctx.SetCookie(c.newCookie(models.RefreshTokenCookie, session.RefreshToken, int(c.cookies.MaxAge/time.Second)))
}

func (c *Controller) clearSessionCookies(ctx echo.Context) {
	ctx.SetCookie(c.newCookie(models.AccessTokenCookie, "", -1))
	ctx.SetCookie(c.newCookie(models.RefreshTokenCookie, "", -1))
}

func (c *Controller) newCookie(name, value string, maxAge int) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.cookies.Path,
		Domain:   c.cookies.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.cookies.Secure,
		SameSite: c.cookies.SameSite,
	}
	if maxAge > 0 {
		cookie.Expires = time.Now().Add(time.Duration(maxAge) * time.Second)
	} else {
		cookie.Expires = time.Unix(0, 0)
	}
	return cookie
}

func cookieValue(ctx echo.Context, name string) string {
	cookie, err := ctx.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
