package controller

import (
	"github.com/labstack/echo/v4"
)

// RegisterHandlersWithBaseURL wires the auth routes. Routes that need an
// authenticated identity go through gate.
func RegisterHandlersWithBaseURL(e *echo.Echo, c *Controller, base string, gate echo.MiddlewareFunc) {
	g := e.Group(base)
	g.GET("/ping", c.CheckServer)

	g.POST("/register", c.Register)
	g.POST("/login", c.Login)
	g.GET("/refresh", c.Refresh)

	g.POST("/logout", c.Logout, gate)
	g.GET("/me", c.Me, gate)
}
