package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harentsoaR/clinic-booking-api/internal/models"
)

const publishTimeout = 5 * time.Second

// NotificationService turns appointment changes into events. Publishing
// happens in the background so a slow broker never delays a response.
type NotificationService struct {
	publisher EventPublisher
	logger    zerolog.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

func NewNotificationService(publisher EventPublisher, logger zerolog.Logger) *NotificationService {
	return &NotificationService{publisher: publisher, logger: logger, now: time.Now}
}

func (s *NotificationService) AppointmentBooked(a *models.Appointment, slot *models.Timeslot) {
	s.publish(s.appointmentEvent(EventAppointmentBooked, a, slot))
}

func (s *NotificationService) AppointmentRescheduled(a *models.Appointment, slot *models.Timeslot) {
	s.publish(s.appointmentEvent(EventAppointmentRescheduled, a, slot))
}

func (s *NotificationService) AppointmentCancelled(a *models.Appointment, slot *models.Timeslot) {
	s.publish(s.appointmentEvent(EventAppointmentCancelled, a, slot))
}

func (s *NotificationService) AppointmentStatusChanged(a *models.Appointment) {
	s.publish(s.appointmentEvent(EventAppointmentStatus, a, a.Timeslot))
}

func (s *NotificationService) RefundConfirmed(r *models.Refund) {
	s.publish(Event{
		Type:          EventRefundConfirmed,
		AppointmentID: r.AppointmentID.Hex(),
		PatientID:     r.PatientID.Hex(),
		RefundID:      r.ID.Hex(),
		Status:        r.Status,
		Amount:        r.Amount,
		OccurredAt:    s.now(),
	})
}

func (s *NotificationService) appointmentEvent(typ string, a *models.Appointment, slot *models.Timeslot) Event {
	e := Event{
		Type:          typ,
		AppointmentID: a.ID.Hex(),
		PatientID:     a.PatientID.Hex(),
		DoctorID:      a.DoctorID.Hex(),
		TimeslotID:    a.TimeslotID.Hex(),
		Status:        a.Status,
		OccurredAt:    s.now(),
	}
	if slot != nil {
		e.Date = slot.DateKey()
		e.StartTime = slot.StartTime
	}
	return e
}

func (s *NotificationService) publish(e Event) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, e); err != nil {
			s.logger.Error().Err(err).
				Str("type", e.Type).
				Str("appointmentId", e.AppointmentID).
				Msg("failed to publish event")
		}
	}()
}

// Close waits for in-flight events, then closes the publisher.
func (s *NotificationService) Close() error {
	s.wg.Wait()
	return s.publisher.Close()
}
