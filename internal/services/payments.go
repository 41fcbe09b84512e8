package services

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/harentsoaR/clinic-booking-api/internal/models"
	"github.com/harentsoaR/clinic-booking-api/internal/store"
)

// NewOrderCode returns a random positive order code for the payment
// gateway. It stays below 2^48 so JavaScript clients read it exactly.
func NewOrderCode() int64 {
	id := uuid.New()
	var b [8]byte
	copy(b[2:], id[:6])
	code := int64(binary.BigEndian.Uint64(b[:]))
	if code == 0 {
		return 1
	}
	return code
}

// PaymentSweeper cancels pending payments the patient never completed,
// along with the pending appointments they were opened for, so the
// timeslots can be booked again.
type PaymentSweeper struct {
	stores        *store.Stores
	notifications *NotificationService
	ttl           time.Duration
	logger        zerolog.Logger
	now           func() time.Time
	cron          *cron.Cron
}

// NewPaymentSweeper builds a sweeper. notifications may be nil.
func NewPaymentSweeper(stores *store.Stores, notifications *NotificationService, ttl time.Duration, logger zerolog.Logger) *PaymentSweeper {
	return &PaymentSweeper{stores: stores, notifications: notifications, ttl: ttl, logger: logger, now: time.Now}
}

// Sweep cancels every pending payment older than the TTL and returns how
// many it cancelled.
func (s *PaymentSweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.ttl)
	stale, err := s.stores.Payments.CancelStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cancel stale payments: %w", err)
	}
	for i := range stale {
		if err := s.expireAppointment(ctx, &stale[i]); err != nil {
			s.logger.Error().Err(err).
				Int64("orderCode", stale[i].OrderCode).
				Str("appointmentId", stale[i].MetaData.AppointmentID.Hex()).
				Msg("failed to cancel appointment of expired payment")
		}
	}
	n := int64(len(stale))
	if n > 0 {
		s.logger.Info().Int64("cancelled", n).Time("cutoff", cutoff).Msg("stale payments cancelled")
	}
	return n, nil
}

// expireAppointment cancels the payment's appointment if it is still
// pending and releases its timeslot.
func (s *PaymentSweeper) expireAppointment(ctx context.Context, p *models.Payment) error {
	id := p.MetaData.AppointmentID
	if id.IsZero() {
		return nil
	}
	appt, err := s.stores.Appointments.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if appt.Status != models.StatusPending {
		return nil
	}
	if err := s.stores.Appointments.UpdateStatus(ctx, id, models.StatusPending, models.StatusCancelled); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.stores.Timeslots.Release(ctx, appt.TimeslotID); err != nil {
		return fmt.Errorf("release timeslot %s: %w", appt.TimeslotID.Hex(), err)
	}
	appt.Status = models.StatusCancelled
	if s.notifications != nil {
		s.notifications.AppointmentCancelled(appt, nil)
	}
	return nil
}

// Start runs Sweep on the cron spec until Stop.
func (s *PaymentSweeper) Start(spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error().Err(err).Msg("payment sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule payment sweep %q: %w", spec, err)
	}
	s.cron = c
	c.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *PaymentSweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
