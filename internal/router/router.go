// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/meeting-stake-calendar/internal/handler"
	"github.com/iliyamo/meeting-stake-calendar/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check used by
// load balancers and monitoring to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while the session introspection endpoint lives under /v1 behind JWT auth.
// The optional limiter throttles credential guessing and registration spam.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	if limiter != nil {
		g.Use(limiter)
	}
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Refresh rotates the refresh token and issues a new access token.
	g.POST("/refresh", a.Refresh)
	// Logout accepts a JSON body containing a `refresh_token` and
	// invalidates it.  No JWT is required, only the refresh token itself.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("MEMBER", "AUTHORITY"))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers unauthenticated browse endpoints.  The day views
// are sanitized so guests can see which intervals are taken without learning
// who booked them or what was staked.  The optional cache middleware is the
// Redis response cache; pass nil to serve uncached.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	mw := []echo.MiddlewareFunc{}
	if cache != nil {
		mw = append(mw, cache)
	}
	e.GET("/v1/calendar", p.Calendar, mw...)
	e.GET("/v1/days/:day/meetings", p.DayMeetings, mw...)
	e.GET("/v1/days/:day/schedule.ics", p.DayScheduleICS, mw...)
}

// RegisterMember registers the booking endpoints under /v1.  All routes
// require a valid JWT; both roles may book, since the authority account is
// an ordinary member for booking purposes.  The optional limiter is the
// Redis token-bucket middleware applied to the booking route to keep one
// client from hammering the conflict check.
func RegisterMember(e *echo.Echo, m *handler.MeetingHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("MEMBER", "AUTHORITY"),
	)
	if limiter != nil {
		g.POST("/meetings", m.RequestMeeting, limiter)
	} else {
		g.POST("/meetings", m.RequestMeeting)
	}
	g.GET("/my-meetings", m.MyMeetings)
}

// RegisterAuthority registers AUTHORITY-scoped endpoints under /v1/authority.
// The role middleware gates the route group; the engine additionally checks
// the caller against the configured authority account, so both must agree.
func RegisterAuthority(e *echo.Echo, a *handler.AuthorityHandler, jwtSecret string) {
	g := e.Group(
		"/v1/authority",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("AUTHORITY"),
	)
	g.POST("/resolutions", a.ResolveStake)
	g.PATCH("/config", a.UpdateConfig)
	g.GET("/days/:day/meetings", a.DayMeetings)
}
