package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-booking-api/internal/models"
	"github.com/harentsoaR/clinic-booking-api/internal/schedule"
	"github.com/harentsoaR/clinic-booking-api/internal/store"
	"github.com/harentsoaR/clinic-booking-api/internal/utils"
)

type CreateScheduleRequest struct {
	DoctorID      string   `json:"doctorId"`
	SelectedSlots []int    `json:"selected_slots"`
	Dates         []string `json:"dates"`
	StartDate     string   `json:"startDate"`
	EndDate       string   `json:"endDate"`
}

type doctorScheduleResponse struct {
	Timeslots []models.Timeslot `json:"timeslots"`
}

func (h *Handler) GetSlotTemplates(c *gin.Context) {
	utils.SendSuccess(c, http.StatusOK, schedule.Templates(), "")
}

// CreateSchedule opens timeslots for every selected slot on every date.
// Doctors open their own; staff name the doctor. The batch is stored whole
// or not at all.
func (h *Handler) CreateSchedule(c *gin.Context) {
	var req CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, "Invalid request body")
		return
	}

	doctorID, ok := h.scheduleOwner(c, req.DoctorID)
	if !ok {
		return
	}

	dates, err := requestDates(req)
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, err.Error())
		return
	}
	today := h.today()
	for _, d := range dates {
		if d.Before(today) {
			utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, "Cannot open timeslots in the past: "+d.Format(schedule.DateLayout))
			return
		}
	}

	slots, err := schedule.Generate(doctorID, req.SelectedSlots, dates)
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, err.Error())
		return
	}

	if err := h.Stores.Timeslots.InsertBatch(c.Request.Context(), slots); err != nil {
		h.storeError(c, err, "schedule")
		return
	}

	h.Logger.Info().
		Str("doctorId", doctorID.Hex()).
		Int("timeslots", len(slots)).
		Msg("schedule created")
	utils.SendSuccess(c, http.StatusCreated, slots, fmt.Sprintf("Created %d timeslots", len(slots)))
}

func requestDates(req CreateScheduleRequest) ([]time.Time, error) {
	if len(req.Dates) > 0 {
		dates := make([]time.Time, 0, len(req.Dates))
		for _, s := range req.Dates {
			d, err := schedule.ParseDate(s)
			if err != nil {
				return nil, err
			}
			dates = append(dates, d)
		}
		return dates, nil
	}
	if req.StartDate == "" || req.EndDate == "" {
		return nil, schedule.ErrNothingSelected
	}
	start, err := schedule.ParseDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := schedule.ParseDate(req.EndDate)
	if err != nil {
		return nil, err
	}
	return schedule.DatesInRange(start, end)
}

// scheduleOwner resolves whose schedule the caller is working on: their own
// for a doctor, the named doctor for staff.
func (h *Handler) scheduleOwner(c *gin.Context, requested string) (primitive.ObjectID, bool) {
	userID, role, ok := caller(c)
	if !ok {
		return primitive.NilObjectID, false
	}
	if role == models.RoleDoctor {
		if requested != "" && requested != userID.Hex() {
			utils.SendError(c, http.StatusForbidden, utils.CodeForbidden, "Doctors can only manage their own schedule")
			return primitive.NilObjectID, false
		}
		return userID, true
	}

	if requested == "" {
		utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, "doctorId is required")
		return primitive.NilObjectID, false
	}
	doctorID, ok := objectID(c, requested, "doctor")
	if !ok {
		return primitive.NilObjectID, false
	}
	doctor, err := h.Stores.Users.Get(c.Request.Context(), doctorID)
	if err != nil {
		h.storeError(c, err, "doctor")
		return primitive.NilObjectID, false
	}
	if doctor.Role != models.RoleDoctor {
		utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, "User is not a doctor")
		return primitive.NilObjectID, false
	}
	return doctorID, true
}

// dateWindow reads startDate and endDate, defaulting to the current week.
func (h *Handler) dateWindow(c *gin.Context) (time.Time, time.Time, bool) {
	from, to := schedule.WeekRange(h.today())
	if s := c.Query("startDate"); s != "" {
		d, err := schedule.ParseDate(s)
		if err != nil {
			utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, "Invalid startDate, use YYYY-MM-DD")
			return time.Time{}, time.Time{}, false
		}
		from = d
		if c.Query("endDate") == "" {
			to = from.AddDate(0, 0, 6)
		}
	}
	if s := c.Query("endDate"); s != "" {
		d, err := schedule.ParseDate(s)
		if err != nil {
			utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, "Invalid endDate, use YYYY-MM-DD")
			return time.Time{}, time.Time{}, false
		}
		to = d
	}
	if to.Before(from) {
		utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, schedule.ErrInvalidRange.Error())
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

// GetScheduleByWeek returns the caller's (or, for staff, the named
// doctor's) timeslots in the window.
func (h *Handler) GetScheduleByWeek(c *gin.Context) {
	doctorID, ok := h.scheduleOwner(c, c.Query("doctorId"))
	if !ok {
		return
	}
	from, to, ok := h.dateWindow(c)
	if !ok {
		return
	}
	slots, err := h.Stores.Timeslots.List(c.Request.Context(), store.TimeslotFilter{
		DoctorIDs: []primitive.ObjectID{doctorID}, From: from, To: to,
	})
	if err != nil {
		h.storeError(c, err, "timeslots")
		return
	}
	utils.SendSuccess(c, http.StatusOK, slots, "")
}

// GetDoctorSchedule is the read-only week view any signed-in user may open.
func (h *Handler) GetDoctorSchedule(c *gin.Context) {
	if c.Query("doctorId") == "" {
		utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, "doctorId is required")
		return
	}
	doctorID, ok := objectID(c, c.Query("doctorId"), "doctor")
	if !ok {
		return
	}
	from, to, ok := h.dateWindow(c)
	if !ok {
		return
	}
	slots, err := h.Stores.Timeslots.List(c.Request.Context(), store.TimeslotFilter{
		DoctorIDs: []primitive.ObjectID{doctorID}, From: from, To: to,
	})
	if err != nil {
		h.storeError(c, err, "timeslots")
		return
	}
	utils.SendSuccess(c, http.StatusOK, doctorScheduleResponse{Timeslots: slots}, "")
}

// GetTimeslotsByDoctor lists a doctor's timeslots, optionally bounded by
// startDate and endDate.
func (h *Handler) GetTimeslotsByDoctor(c *gin.Context) {
	doctorID, ok := objectID(c, c.Param("doctorId"), "doctor")
	if !ok {
		return
	}
	filter := store.TimeslotFilter{DoctorIDs: []primitive.ObjectID{doctorID}}
	for key, dst := range map[string]*time.Time{"startDate": &filter.From, "endDate": &filter.To} {
		if s := c.Query(key); s != "" {
			d, err := schedule.ParseDate(s)
			if err != nil {
				utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, "Invalid "+key+", use YYYY-MM-DD")
				return
			}
			*dst = d
		}
	}

	slots, err := h.Stores.Timeslots.List(c.Request.Context(), filter)
	if err != nil {
		h.storeError(c, err, "timeslots")
		return
	}
	utils.SendSuccess(c, http.StatusOK, slots, "")
}
