package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-booking-api/internal/models"
)

// Memory keeps every collection in process. It backs `serve --in-memory`
// and the package tests; data is lost on exit.
type Memory struct {
	mu           sync.Mutex
	users        map[primitive.ObjectID]models.User
	timeslots    map[primitive.ObjectID]models.Timeslot
	appointments map[primitive.ObjectID]models.Appointment
	refunds      map[primitive.ObjectID]models.Refund
	payments     map[int64]models.Payment
	services     map[primitive.ObjectID]models.Service
}

func NewMemory() *Memory {
	return &Memory{
		users:        make(map[primitive.ObjectID]models.User),
		timeslots:    make(map[primitive.ObjectID]models.Timeslot),
		appointments: make(map[primitive.ObjectID]models.Appointment),
		refunds:      make(map[primitive.ObjectID]models.Refund),
		payments:     make(map[int64]models.Payment),
		services:     make(map[primitive.ObjectID]models.Service),
	}
}

// Stores exposes m through the store interfaces.
func (m *Memory) Stores() *Stores {
	return &Stores{
		Users:        memUsers{m},
		Timeslots:    memTimeslots{m},
		Appointments: memAppointments{m},
		Refunds:      memRefunds{m},
		Payments:     memPayments{m},
		Services:     memServices{m},
	}
}

// PutService inserts or replaces a service. Services have no write API.
func (m *Memory) PutService(svc models.Service) models.Service {
	m.mu.Lock()
	defer m.mu.Unlock()
	if svc.ID.IsZero() {
		svc.ID = primitive.NewObjectID()
	}
	m.services[svc.ID] = svc
	return svc
}

type memUsers struct{ m *Memory }

func (s memUsers) Create(_ context.Context, u *models.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.users {
		if existing.Email == u.Email {
			return fmt.Errorf("%w: email %s", ErrDuplicate, u.Email)
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	s.m.users[u.ID] = *u
	return nil
}

func (s memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, u := range s.m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s memUsers) Get(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s memUsers) UpdateName(_ context.Context, id primitive.ObjectID, fullName string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.FullName = fullName
	s.m.users[id] = u
	return nil
}

type memTimeslots struct{ m *Memory }

type slotKey struct {
	doctor primitive.ObjectID
	date   time.Time
	index  int
}

func (s memTimeslots) InsertBatch(_ context.Context, slots []models.Timeslot) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	taken := make(map[slotKey]bool, len(s.m.timeslots)+len(slots))
	for _, sl := range s.m.timeslots {
		taken[slotKey{sl.DoctorID, sl.Date.UTC(), sl.SlotIndex}] = true
	}
	for _, sl := range slots {
		k := slotKey{sl.DoctorID, sl.Date.UTC(), sl.SlotIndex}
		if taken[k] {
			return ErrSlotConflict
		}
		taken[k] = true
	}
	for i := range slots {
		if slots[i].ID.IsZero() {
			slots[i].ID = primitive.NewObjectID()
		}
		s.m.timeslots[slots[i].ID] = slots[i]
	}
	return nil
}

func (s memTimeslots) Get(_ context.Context, id primitive.ObjectID) (*models.Timeslot, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	sl, ok := s.m.timeslots[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sl, nil
}

func (s memTimeslots) GetMany(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Timeslot, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := make(map[primitive.ObjectID]models.Timeslot, len(ids))
	for _, id := range ids {
		if sl, ok := s.m.timeslots[id]; ok {
			out[id] = sl
		}
	}
	return out, nil
}

func (s memTimeslots) List(_ context.Context, f TimeslotFilter) ([]models.Timeslot, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	doctors := make(map[primitive.ObjectID]bool, len(f.DoctorIDs))
	for _, id := range f.DoctorIDs {
		doctors[id] = true
	}
	out := make([]models.Timeslot, 0)
	for _, sl := range s.m.timeslots {
		if len(doctors) > 0 && !doctors[sl.DoctorID] {
			continue
		}
		if !f.From.IsZero() && sl.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && sl.Date.After(f.To) {
			continue
		}
		out = append(out, sl)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].SlotIndex < out[j].SlotIndex
	})
	return out, nil
}

func (s memTimeslots) Claim(_ context.Context, id primitive.ObjectID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	sl, ok := s.m.timeslots[id]
	if !ok {
		return ErrNotFound
	}
	if !sl.IsAvailable {
		return ErrSlotUnavailable
	}
	sl.IsAvailable = false
	sl.Status = models.SlotStatusBooked
	s.m.timeslots[id] = sl
	return nil
}

func (s memTimeslots) Release(_ context.Context, id primitive.ObjectID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	sl, ok := s.m.timeslots[id]
	if !ok {
		return ErrNotFound
	}
	sl.IsAvailable = true
	sl.Status = models.SlotStatusAvailable
	s.m.timeslots[id] = sl
	return nil
}

type memAppointments struct{ m *Memory }

func (s memAppointments) Create(_ context.Context, a *models.Appointment) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	stored := *a
	stored.Timeslot = nil
	s.m.appointments[a.ID] = stored
	return nil
}

func (s memAppointments) Get(_ context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s memAppointments) List(_ context.Context, f AppointmentFilter) ([]models.Appointment, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := make([]models.Appointment, 0)
	for _, a := range s.m.appointments {
		if !f.PatientID.IsZero() && a.PatientID != f.PatientID {
			continue
		}
		if !f.DoctorID.IsZero() && a.DoctorID != f.DoctorID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s memAppointments) Reschedule(_ context.Context, id, fromSlotID, doctorID, timeslotID primitive.ObjectID, note string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.appointments[id]
	if !ok || a.TimeslotID != fromSlotID ||
		a.Status == models.StatusCompleted || a.Status == models.StatusCancelled {
		return ErrNotFound
	}
	a.DoctorID = doctorID
	a.TimeslotID = timeslotID
	a.Note = note
	s.m.appointments[id] = a
	return nil
}

func (s memAppointments) UpdateStatus(_ context.Context, id primitive.ObjectID, from, to string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.appointments[id]
	if !ok || a.Status != from {
		return ErrNotFound
	}
	a.Status = to
	s.m.appointments[id] = a
	return nil
}

type memRefunds struct{ m *Memory }

func (s memRefunds) Create(_ context.Context, r *models.Refund) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.refunds {
		if existing.AppointmentID == r.AppointmentID {
			return fmt.Errorf("%w: refund for appointment %s", ErrDuplicate, r.AppointmentID.Hex())
		}
	}
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	s.m.refunds[r.ID] = *r
	return nil
}

func (s memRefunds) Get(_ context.Context, id primitive.ObjectID) (*models.Refund, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.refunds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s memRefunds) List(_ context.Context, status string) ([]models.Refund, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := make([]models.Refund, 0)
	for _, r := range s.m.refunds {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s memRefunds) MarkRefunded(_ context.Context, id primitive.ObjectID, at time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	r, ok := s.m.refunds[id]
	if !ok || !r.Confirmable() {
		return ErrNotFound
	}
	r.Status = models.RefundRefunded
	r.ProcessedAt = &at
	s.m.refunds[id] = r
	return nil
}

type memPayments struct{ m *Memory }

func (s memPayments) Create(_ context.Context, p *models.Payment) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.payments[p.OrderCode]; ok {
		return fmt.Errorf("%w: order code %d", ErrDuplicate, p.OrderCode)
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.m.payments[p.OrderCode] = *p
	return nil
}

func (s memPayments) GetByOrderCode(_ context.Context, orderCode int64) (*models.Payment, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.payments[orderCode]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s memPayments) UpdateStatus(_ context.Context, orderCode int64, status string, at time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.payments[orderCode]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = at
	s.m.payments[orderCode] = p
	return nil
}

func (s memPayments) CancelStale(_ context.Context, cutoff time.Time) ([]models.Payment, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := make([]models.Payment, 0)
	for code, p := range s.m.payments {
		if p.Status == models.PaymentPending && p.CreatedAt.Before(cutoff) {
			p.Status = models.PaymentCanceled
			p.UpdatedAt = time.Now()
			s.m.payments[code] = p
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderCode < out[j].OrderCode })
	return out, nil
}

type memServices struct{ m *Memory }

func (s memServices) Get(_ context.Context, id primitive.ObjectID) (*models.Service, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	svc, ok := s.m.services[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &svc, nil
}

func (s memServices) List(_ context.Context) ([]models.Service, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := make([]models.Service, 0, len(s.m.services))
	for _, svc := range s.m.services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
