package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/clinic-booking-api/internal/store"
	"github.com/harentsoaR/clinic-booking-api/internal/utils"
)

func (h *Handler) GetServices(c *gin.Context) {
	services, err := h.Stores.Services.List(c.Request.Context())
	if err != nil {
		h.storeError(c, err, "services")
		return
	}
	utils.SendSuccess(c, http.StatusOK, services, "")
}

// GetServiceDetail returns a service with the timeslots its doctors have
// opened from today on. Booked slots are included so clients can show them
// as taken.
func (h *Handler) GetServiceDetail(c *gin.Context) {
	id, ok := objectID(c, c.Param("serviceId"), "service")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	svc, err := h.Stores.Services.Get(ctx, id)
	if err != nil {
		h.storeError(c, err, "service")
		return
	}

	svc.Timeslots = nil
	if len(svc.DoctorIDs) > 0 {
		slots, err := h.Stores.Timeslots.List(ctx, store.TimeslotFilter{DoctorIDs: svc.DoctorIDs, From: h.today()})
		if err != nil {
			h.storeError(c, err, "timeslots")
			return
		}
		svc.Timeslots = slots
	}
	utils.SendSuccess(c, http.StatusOK, svc, "")
}
