package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/glacombe/pourvoirie-booking/internal/repository"
	"github.com/glacombe/pourvoirie-booking/internal/service"
)

// SyncHandler exposes the on-demand reconcile endpoint.  The periodic
// loop covers the steady state; this endpoint exists for owners who
// just edited their calendar and want the site updated now.
type SyncHandler struct {
	Sync      *service.SyncService     // reconciler
	Resources *repository.ResourceRepo // ownership lookups
}

// NewSyncHandler constructs a new SyncHandler.  Both dependencies must
// be non-nil.
func NewSyncHandler(sync *service.SyncService, resources *repository.ResourceRepo) *SyncHandler {
	if sync == nil || resources == nil {
		panic("nil dependency passed to NewSyncHandler")
	}
	return &SyncHandler{Sync: sync, Resources: resources}
}

// TriggerSync handles POST /v1/resources/:id/sync.  Only the resource
// owner or an ADMIN may trigger a pass.  The pass runs synchronously
// and the response carries its counters, so the owner sees immediately
// what changed.
func (h *SyncHandler) TriggerSync(c echo.Context) error {
	resourceID, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	res, err := h.Resources.GetByID(c.Request().Context(), resourceID)
	if err != nil {
		return httpError(c, err)
	}
	if getRole(c) != "ADMIN" && res.OwnerID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	result, err := h.Sync.Reconcile(c.Request().Context(), resourceID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
