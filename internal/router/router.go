package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/glacombe/pourvoirie-booking/internal/handler"
	"github.com/glacombe/pourvoirie-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Load balancers and monitoring probe this endpoint.
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers unauthenticated browse and availability
// endpoints.  The availability check carries the rate limiter because
// it fans out to the external calendar API; the plain browse routes
// serve straight from the database and stay unthrottled.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, b *handler.BookingHandler, limiter echo.MiddlewareFunc) {
	// Expose the chalet and guide catalogs.
	e.GET("/v1/chalets", p.GetPublicChalets)
	e.GET("/v1/guides", p.GetPublicGuides)
	// Resource detail by id.
	e.GET("/v1/resources/:id", p.GetPublicResource)
	// Availability over a range; guests check before signing up.
	e.GET("/v1/resources/:id/availability", b.CheckAvailability, limiter)
}

// RegisterBookings registers the authenticated booking lifecycle and
// the owner-facing sync trigger.  All routes verify the Bearer token
// and accept CUSTOMER, OWNER and ADMIN roles; finer ownership checks
// happen inside the handlers.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, s *handler.SyncHandler, jwtSecret string) {
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("CUSTOMER", "OWNER", "ADMIN"))

	// Booking lifecycle: create, modify, cancel.
	auth.POST("/bookings", b.CreateBooking)
	auth.PATCH("/bookings/:id", b.UpdateBooking)
	auth.DELETE("/bookings/:id", b.CancelBooking)

	// Owner views of a resource's bookings and the on-demand reconcile.
	auth.GET("/resources/:id/bookings", b.ListResourceBookings)
	auth.POST("/resources/:id/sync", s.TriggerSync)
}
