// This file defines handlers for the public browsing API.  These
// routes let unauthenticated visitors browse chalets and guides before
// booking.  Sensitive fields (owner IDs, calendar IDs, timestamps) are
// filtered from responses.

package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/glacombe/pourvoirie-booking/internal/model"
	"github.com/glacombe/pourvoirie-booking/internal/repository"
)

// PublicHandler aggregates repositories needed for unauthenticated
// browsing.  It produces sanitized responses suitable for public
// consumption.
type PublicHandler struct {
	ResourceRepo *repository.ResourceRepo // provides access to resource data
}

// PublicResource represents a chalet or guide exposed via the public
// API.  It contains only safe fields.
type PublicResource struct {
	ID           uint64  `json:"id"`
	ResourceType string  `json:"resource_type"`
	Name         string  `json:"name"`
	Capacity     *uint32 `json:"capacity,omitempty"`
	PriceCents   uint32  `json:"price_cents"`
	Specialties  *string `json:"specialties,omitempty"`
	HasCalendar  bool    `json:"has_calendar"`
}

func publicResource(res *model.Resource) PublicResource {
	return PublicResource{
		ID:           res.ID,
		ResourceType: res.ResourceType,
		Name:         res.Name,
		Capacity:     res.Capacity,
		PriceCents:   res.PriceCents,
		Specialties:  res.Specialties,
		HasCalendar:  res.HasCalendar(),
	}
}

// GetPublicChalets returns all chalets.  Response JSON contains an
// "items" array of PublicResource.
func (h *PublicHandler) GetPublicChalets(c echo.Context) error {
	return h.listByType(c, model.ResourceTypeChalet)
}

// GetPublicGuides returns all fishing guides.
func (h *PublicHandler) GetPublicGuides(c echo.Context) error {
	return h.listByType(c, model.ResourceTypeGuide)
}

func (h *PublicHandler) listByType(c echo.Context, resourceType string) error {
	resources, err := h.ResourceRepo.ListByType(c.Request().Context(), resourceType)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]PublicResource, 0, len(resources))
	for i := range resources {
		out = append(out, publicResource(&resources[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetPublicResource returns one resource by id for the detail page.
func (h *PublicHandler) GetPublicResource(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	res, err := h.ResourceRepo.GetByID(c.Request().Context(), id)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, publicResource(res))
}
