package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-booking-api/internal/models"
	"github.com/harentsoaR/clinic-booking-api/internal/schedule"
	"github.com/harentsoaR/clinic-booking-api/internal/services"
	"github.com/harentsoaR/clinic-booking-api/internal/store"
	"github.com/harentsoaR/clinic-booking-api/internal/utils"
)

// editPolicy is the rule the server enforces on reschedules and reports in
// the actions block.
const editPolicy = schedule.EditFollowUp

type BookAppointmentRequest struct {
	TimeslotID string `json:"timeslotId" binding:"required"`
	ServiceID  string `json:"serviceId" binding:"required"`
	ClinicID   string `json:"clinicId"`
	Note       string `json:"note"`
}

type EditAppointmentRequest struct {
	TimeslotID string `json:"timeslotId" binding:"required"`
	Note       string `json:"note"`
}

type CancelAppointmentRequest struct {
	RefundAccount string `json:"refundAccount"`
	Reason        string `json:"reason"`
}

// AppointmentView is an appointment with its timeslot and the actions the
// caller may take right now.
type AppointmentView struct {
	models.Appointment
	Actions schedule.Actions `json:"actions"`
}

type bookingResponse struct {
	Appointment AppointmentView `json:"appointment"`
	Payment     *models.Payment `json:"payment"`
}

type cancelResponse struct {
	Appointment AppointmentView `json:"appointment"`
	Refund      *models.Refund  `json:"refund,omitempty"`
}

func (h *Handler) view(a *models.Appointment) AppointmentView {
	return AppointmentView{
		Appointment: *a,
		Actions:     schedule.Evaluate(a, h.Now(), h.Loc, editPolicy),
	}
}

// BookAppointment claims a timeslot for the calling patient, then records
// the appointment and its pending payment.
func (h *Handler) BookAppointment(c *gin.Context) {
	patientID, _, ok := caller(c)
	if !ok {
		return
	}
	var req BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, "timeslotId and serviceId are required")
		return
	}
	slotID, ok := objectID(c, req.TimeslotID, "timeslot")
	if !ok {
		return
	}
	serviceID, ok := objectID(c, req.ServiceID, "service")
	if !ok {
		return
	}
	var clinicID primitive.ObjectID
	if req.ClinicID != "" {
		if clinicID, ok = objectID(c, req.ClinicID, "clinic"); !ok {
			return
		}
	}

	ctx := c.Request.Context()
	svc, err := h.Stores.Services.Get(ctx, serviceID)
	if err != nil {
		h.storeError(c, err, "service")
		return
	}
	slot, err := h.Stores.Timeslots.Get(ctx, slotID)
	if err != nil {
		h.storeError(c, err, "timeslot")
		return
	}
	if !offersDoctor(svc, slot.DoctorID) {
		utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, "This doctor does not provide the selected service")
		return
	}
	start, err := slot.Start(h.Loc)
	if err != nil || !start.After(h.Now()) {
		utils.SendError(c, http.StatusConflict, utils.CodeLeadTime, "This timeslot has already started")
		return
	}

	if err := h.Stores.Timeslots.Claim(ctx, slotID); err != nil {
		h.storeError(c, err, "timeslot")
		return
	}

	now := h.Now()
	appt := models.Appointment{
		PatientID:  patientID,
		DoctorID:   slot.DoctorID,
		ServiceID:  serviceID,
		ClinicID:   clinicID,
		TimeslotID: slotID,
		Status:     models.StatusPending,
		Note:       strings.TrimSpace(req.Note),
		CreatedAt:  now,
	}
	if err := h.Stores.Appointments.Create(ctx, &appt); err != nil {
		h.release(ctx, slotID)
		h.storeError(c, err, "appointment")
		return
	}

	payment := models.Payment{
		Amount:        svc.Price,
		Status:        models.PaymentPending,
		PaymentMethod: "bank_transfer",
		OrderCode:     services.NewOrderCode(),
		Description:   fmt.Sprintf("%s %s %s", svc.Name, slot.DateKey(), slot.StartTime),
		MetaData: models.PaymentMeta{
			DoctorID:      slot.DoctorID,
			PatientID:     patientID,
			AppointmentID: appt.ID,
			Note:          appt.Note,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Stores.Payments.Create(ctx, &payment); err != nil {
		// Undo the booking so the slot is not held without a payment.
		if uerr := h.Stores.Appointments.UpdateStatus(ctx, appt.ID, models.StatusPending, models.StatusCancelled); uerr != nil {
			h.Logger.Error().Err(uerr).Str("appointmentId", appt.ID.Hex()).Msg("failed to roll back appointment")
		}
		h.release(ctx, slotID)
		h.storeError(c, err, "payment")
		return
	}

	slot.IsAvailable = false
	slot.Status = models.SlotStatusBooked
	appt.Timeslot = slot
	h.Notifier.AppointmentBooked(&appt, slot)

	h.Logger.Info().
		Str("appointmentId", appt.ID.Hex()).
		Str("doctorId", appt.DoctorID.Hex()).
		Str("timeslotId", slotID.Hex()).
		Msg("appointment booked")
	utils.SendSuccess(c, http.StatusCreated, bookingResponse{Appointment: h.view(&appt), Payment: &payment}, "Appointment booked")
}

func offersDoctor(svc *models.Service, doctorID primitive.ObjectID) bool {
	if len(svc.DoctorIDs) == 0 {
		return true
	}
	for _, id := range svc.DoctorIDs {
		if id == doctorID {
			return true
		}
	}
	return false
}

// release frees a slot after a failed or cancelled booking. A failure is
// logged; the caller has already decided the outcome.
func (h *Handler) release(ctx context.Context, slotID primitive.ObjectID) {
	if err := h.Stores.Timeslots.Release(ctx, slotID); err != nil {
		h.Logger.Error().Err(err).Str("timeslotId", slotID.Hex()).Msg("failed to release timeslot")
	}
}

// GetAppointments lists appointments visible to the caller. Patients and
// doctors see their own; staff may filter by status, doctorId and patientId.
func (h *Handler) GetAppointments(c *gin.Context) {
	userID, role, ok := caller(c)
	if !ok {
		return
	}

	filter := store.AppointmentFilter{Status: c.Query("status")}
	if filter.Status != "" && !models.ValidAppointmentStatus(filter.Status) {
		utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, "Unknown status "+filter.Status)
		return
	}
	switch role {
	case models.RolePatient:
		filter.PatientID = userID
	case models.RoleDoctor:
		filter.DoctorID = userID
	default:
		if q := c.Query("doctorId"); q != "" {
			if filter.DoctorID, ok = objectID(c, q, "doctor"); !ok {
				return
			}
		}
		if q := c.Query("patientId"); q != "" {
			if filter.PatientID, ok = objectID(c, q, "patient"); !ok {
				return
			}
		}
	}

	ctx := c.Request.Context()
	appointments, err := h.Stores.Appointments.List(ctx, filter)
	if err != nil {
		h.storeError(c, err, "appointments")
		return
	}

	ids := make([]primitive.ObjectID, 0, len(appointments))
	for _, a := range appointments {
		ids = append(ids, a.TimeslotID)
	}
	slots, err := h.Stores.Timeslots.GetMany(ctx, ids)
	if err != nil {
		h.storeError(c, err, "timeslots")
		return
	}

	views := make([]AppointmentView, 0, len(appointments))
	for i := range appointments {
		if s, ok := slots[appointments[i].TimeslotID]; ok {
			appointments[i].Timeslot = &s
		}
		views = append(views, h.view(&appointments[i]))
	}
	utils.SendSuccess(c, http.StatusOK, views, "")
}

func (h *Handler) GetAppointment(c *gin.Context) {
	appt, ok := h.loadAppointment(c)
	if !ok {
		return
	}
	utils.SendSuccess(c, http.StatusOK, h.view(appt), "")
}

// loadAppointment fetches the :id appointment with its timeslot and checks
// the caller may see it.
func (h *Handler) loadAppointment(c *gin.Context) (*models.Appointment, bool) {
	userID, role, ok := caller(c)
	if !ok {
		return nil, false
	}
	id, ok := objectID(c, c.Param("id"), "appointment")
	if !ok {
		return nil, false
	}

	ctx := c.Request.Context()
	appt, err := h.Stores.Appointments.Get(ctx, id)
	if err != nil {
		h.storeError(c, err, "appointment")
		return nil, false
	}
	if (role == models.RolePatient && appt.PatientID != userID) ||
		(role == models.RoleDoctor && appt.DoctorID != userID) {
		// Same answer as a missing id so ids cannot be guessed.
		utils.SendError(c, http.StatusNotFound, utils.CodeNotFound, "appointment not found")
		return nil, false
	}

	slot, err := h.Stores.Timeslots.Get(ctx, appt.TimeslotID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.storeError(c, err, "timeslot")
		return nil, false
	}
	appt.Timeslot = slot
	return appt, true
}

// EditAppointment moves an appointment to another timeslot and updates its
// note. The appointment must still be editable and the new slot must be
// free and at least the reschedule lead time away; keeping the current slot
// only updates the note.
func (h *Handler) EditAppointment(c *gin.Context) {
	appt, ok := h.loadAppointment(c)
	if !ok {
		return
	}
	var req EditAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, "timeslotId is required")
		return
	}
	newSlotID, ok := objectID(c, req.TimeslotID, "timeslot")
	if !ok {
		return
	}

	now := h.Now()
	if !schedule.CanEdit(appt, now, h.Loc, editPolicy) {
		if appt.Status == models.StatusCompleted || appt.Status == models.StatusCancelled {
			utils.SendError(c, http.StatusConflict, utils.CodeInvalidState, "A "+appt.Status+" appointment cannot be changed")
			return
		}
		utils.SendError(c, http.StatusConflict, utils.CodeLeadTime,
			fmt.Sprintf("Appointments can only be changed at least %d hours in advance", int(schedule.RescheduleLeadTime.Hours())))
		return
	}

	ctx := c.Request.Context()
	note := strings.TrimSpace(req.Note)
	if newSlotID == appt.TimeslotID {
		if err := h.Stores.Appointments.Reschedule(ctx, appt.ID, appt.TimeslotID, appt.DoctorID, appt.TimeslotID, note); err != nil {
			h.changeError(c, err)
			return
		}
		appt.Note = note
		utils.SendSuccess(c, http.StatusOK, h.view(appt), "Appointment updated")
		return
	}

	newSlot, err := h.Stores.Timeslots.Get(ctx, newSlotID)
	if err != nil {
		h.storeError(c, err, "timeslot")
		return
	}
	svc, err := h.Stores.Services.Get(ctx, appt.ServiceID)
	if err != nil {
		h.storeError(c, err, "service")
		return
	}
	if !offersDoctor(svc, newSlot.DoctorID) {
		utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, "This doctor does not provide the selected service")
		return
	}
	start, err := newSlot.Start(h.Loc)
	if err != nil || start.Sub(now) < schedule.RescheduleLeadTime {
		utils.SendError(c, http.StatusConflict, utils.CodeLeadTime,
			fmt.Sprintf("The new timeslot must be at least %d hours away", int(schedule.RescheduleLeadTime.Hours())))
		return
	}

	if err := h.Stores.Timeslots.Claim(ctx, newSlotID); err != nil {
		h.storeError(c, err, "timeslot")
		return
	}
	if err := h.Stores.Appointments.Reschedule(ctx, appt.ID, appt.TimeslotID, newSlot.DoctorID, newSlotID, note); err != nil {
		h.release(ctx, newSlotID)
		h.changeError(c, err)
		return
	}
	h.release(ctx, appt.TimeslotID)

	newSlot.IsAvailable = false
	newSlot.Status = models.SlotStatusBooked
	appt.DoctorID = newSlot.DoctorID
	appt.TimeslotID = newSlotID
	appt.Note = note
	appt.Timeslot = newSlot
	h.Notifier.AppointmentRescheduled(appt, newSlot)

	h.Logger.Info().
		Str("appointmentId", appt.ID.Hex()).
		Str("timeslotId", newSlotID.Hex()).
		Msg("appointment rescheduled")
	utils.SendSuccess(c, http.StatusOK, h.view(appt), "Appointment rescheduled")
}

// UpdateAppointmentStatus applies a staff or doctor status change.
func (h *Handler) UpdateAppointmentStatus(c *gin.Context) {
	appt, ok := h.loadAppointment(c)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !models.ValidAppointmentStatus(req.Status) {
		utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, "A valid status is required")
		return
	}
	if !models.CanTransition(appt.Status, req.Status) {
		utils.SendError(c, http.StatusConflict, utils.CodeInvalidState,
			fmt.Sprintf("Cannot change status from %s to %s", appt.Status, req.Status))
		return
	}

	ctx := c.Request.Context()
	if err := h.Stores.Appointments.UpdateStatus(ctx, appt.ID, appt.Status, req.Status); err != nil {
		h.changeError(c, err)
		return
	}
	if req.Status == models.StatusCancelled {
		h.release(ctx, appt.TimeslotID)
		if appt.Timeslot != nil {
			appt.Timeslot.IsAvailable = true
			appt.Timeslot.Status = models.SlotStatusAvailable
		}
	}
	appt.Status = req.Status
	h.Notifier.AppointmentStatusChanged(appt)
	utils.SendSuccess(c, http.StatusOK, h.view(appt), "Appointment status updated")
}

// CancelAppointment applies the patient cancellation rule: only pending
// appointments, only far enough ahead. A refund account turns the
// cancellation into a pending refund of the service price.
func (h *Handler) CancelAppointment(c *gin.Context) {
	appt, ok := h.loadAppointment(c)
	if !ok {
		return
	}
	var req CancelAppointmentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, "Invalid request body")
			return
		}
	}

	if appt.Status != models.StatusPending {
		utils.SendError(c, http.StatusConflict, utils.CodeInvalidState, "Only pending appointments can be cancelled")
		return
	}
	if !schedule.CanCancel(appt, h.Now(), h.Loc) {
		utils.SendError(c, http.StatusConflict, utils.CodeLeadTime,
			fmt.Sprintf("Appointments can only be cancelled at least %d hours in advance", int(schedule.CancelLeadTime.Hours())))
		return
	}

	ctx := c.Request.Context()
	var refund *models.Refund
	if account := strings.TrimSpace(req.RefundAccount); account != "" {
		svc, err := h.Stores.Services.Get(ctx, appt.ServiceID)
		if err != nil {
			h.storeError(c, err, "service")
			return
		}
		refund = &models.Refund{
			AppointmentID: appt.ID,
			PatientID:     appt.PatientID,
			Amount:        svc.Price,
			RefundAccount: account,
			Status:        models.RefundPending,
			Reason:        strings.TrimSpace(req.Reason),
			CreatedAt:     h.Now(),
		}
	}

	if err := h.Stores.Appointments.UpdateStatus(ctx, appt.ID, models.StatusPending, models.StatusCancelled); err != nil {
		h.changeError(c, err)
		return
	}
	if refund != nil {
		if err := h.Stores.Refunds.Create(ctx, refund); err != nil {
			// The slot is still held, so reverting the status restores the booking.
			if rerr := h.Stores.Appointments.UpdateStatus(ctx, appt.ID, models.StatusCancelled, models.StatusPending); rerr != nil {
				h.Logger.Error().Err(rerr).Str("appointmentId", appt.ID.Hex()).Msg("failed to restore appointment after refund error")
			}
			h.storeError(c, err, "refund")
			return
		}
	}

	h.release(ctx, appt.TimeslotID)
	appt.Status = models.StatusCancelled
	if appt.Timeslot != nil {
		appt.Timeslot.IsAvailable = true
		appt.Timeslot.Status = models.SlotStatusAvailable
	}
	h.Notifier.AppointmentCancelled(appt, appt.Timeslot)

	resp := cancelResponse{Refund: refund}
	resp.Appointment = h.view(appt)

	h.Logger.Info().
		Str("appointmentId", appt.ID.Hex()).
		Bool("refund", resp.Refund != nil).
		Msg("appointment cancelled")
	utils.SendSuccess(c, http.StatusOK, resp, "Appointment cancelled")
}

// changeError answers a conditional update that matched nothing as a
// concurrent change.
func (h *Handler) changeError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		utils.SendError(c, http.StatusConflict, utils.CodeInvalidState, "Appointment was changed by someone else, reload and retry")
		return
	}
	h.storeError(c, err, "appointment")
}
