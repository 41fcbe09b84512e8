package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-booking-api/internal/middleware"
	"github.com/harentsoaR/clinic-booking-api/internal/models"
	"github.com/harentsoaR/clinic-booking-api/internal/store"
	"github.com/harentsoaR/clinic-booking-api/internal/utils"
)

// Notifier receives appointment changes once they are stored.
// *services.NotificationService implements it.
type Notifier interface {
	AppointmentBooked(a *models.Appointment, slot *models.Timeslot)
	AppointmentRescheduled(a *models.Appointment, slot *models.Timeslot)
	AppointmentCancelled(a *models.Appointment, slot *models.Timeslot)
	AppointmentStatusChanged(a *models.Appointment)
	RefundConfirmed(r *models.Refund)
}

type Handler struct {
	Stores       *store.Stores
	Notifier     Notifier
	Tokens       *utils.TokenManager
	Logger       zerolog.Logger
	Loc          *time.Location
	WebhookToken string
	Now          func() time.Time
}

func NewHandler(stores *store.Stores, notifier Notifier, tokens *utils.TokenManager, loc *time.Location, logger zerolog.Logger) *Handler {
	return &Handler{
		Stores:   stores,
		Notifier: notifier,
		Tokens:   tokens,
		Logger:   logger,
		Loc:      loc,
		Now:      time.Now,
	}
}

// today is the current civil date in the clinic timezone, as stored on
// timeslots.
func (h *Handler) today() time.Time {
	n := h.Now().In(h.Loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

// caller returns the authenticated user's id and role.
func caller(c *gin.Context) (primitive.ObjectID, string, bool) {
	id, err := primitive.ObjectIDFromHex(c.GetString(middleware.UserIDKey))
	if err != nil {
		utils.SendError(c, http.StatusUnauthorized, utils.CodeInvalidToken, "Invalid user ID in token")
		return primitive.NilObjectID, "", false
	}
	return id, c.GetString(middleware.UserRoleKey), true
}

// objectID parses a hex id taken from the path or query.
func objectID(c *gin.Context, value, what string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, utils.CodeValidation, "Invalid "+what+" ID")
		return primitive.NilObjectID, false
	}
	return id, true
}

// storeError maps a store failure onto the response envelope. what names
// the resource for not-found messages.
func (h *Handler) storeError(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.SendError(c, http.StatusNotFound, utils.CodeNotFound, what+" not found")
	case errors.Is(err, store.ErrSlotConflict):
		utils.SendError(c, http.StatusConflict, utils.CodeSlotConflict, "One or more timeslots already exist for this doctor")
	case errors.Is(err, store.ErrSlotUnavailable):
		utils.SendError(c, http.StatusConflict, utils.CodeSlotUnavailable, "This timeslot has already been booked")
	case errors.Is(err, store.ErrDuplicate):
		utils.SendError(c, http.StatusConflict, utils.CodeConflict, what+" already exists")
	default:
		_ = c.Error(err)
		h.Logger.Error().Err(err).
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("resource", what).
			Msg("store failure")
		utils.SendError(c, http.StatusInternalServerError, utils.CodeDatabaseError, "Failed to process "+what)
	}
}
