package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-booking-api/internal/handlers"
	"github.com/harentsoaR/clinic-booking-api/internal/models"
	"github.com/harentsoaR/clinic-booking-api/internal/schedule"
	"github.com/harentsoaR/clinic-booking-api/internal/store"
	"github.com/harentsoaR/clinic-booking-api/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.PasswordCost = 4
}

var ict = time.FixedZone("ICT", 7*60*60)

type nopNotifier struct{}

func (nopNotifier) AppointmentBooked(*models.Appointment, *models.Timeslot)      {}
func (nopNotifier) AppointmentRescheduled(*models.Appointment, *models.Timeslot) {}
func (nopNotifier) AppointmentCancelled(*models.Appointment, *models.Timeslot)   {}
func (nopNotifier) AppointmentStatusChanged(*models.Appointment)                 {}
func (nopNotifier) RefundConfirmed(*models.Refund)                               {}

type fixture struct {
	t        *testing.T
	server   *httptest.Server
	mem      *store.Memory
	tokens   *utils.TokenManager
	requests int64
}

// newFixture serves the real API over an in-memory store with the clock
// fixed at Tuesday 2025-06-10 09:00 ICT.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{t: t, mem: store.NewMemory(), tokens: utils.NewTokenManager("client-test", time.Hour)}
	h := handlers.NewHandler(f.mem.Stores(), nopNotifier{}, f.tokens, ict, zerolog.Nop())
	h.Now = func() time.Time { return time.Date(2025, 6, 10, 9, 0, 0, 0, ict) }

	r := gin.New()
	h.RegisterRoutes(r)
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt64(&f.requests, 1)
		r.ServeHTTP(w, req)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) as(role string) (*Client, models.User) {
	f.t.Helper()
	u := models.User{FullName: role, Email: primitive.NewObjectID().Hex() + "@clinic.test", Role: role}
	if err := f.mem.Stores().Users.Create(context.Background(), &u); err != nil {
		f.t.Fatalf("seed user: %v", err)
	}
	token, err := f.tokens.Generate(u.ID.Hex(), role)
	if err != nil {
		f.t.Fatalf("token: %v", err)
	}
	return New(f.server.URL, Session{Token: token, UserID: u.ID, Role: role}), u
}

func day(s string) time.Time {
	d, err := schedule.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	anon := New(f.server.URL, Session{})

	req := RegisterRequest{FullName: "Mai Tran", Email: "mai@clinic.test", Password: "password123", Phone: "0901"}
	if _, err := anon.Register(ctx, req); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := anon.Register(ctx, req)
	if !HasCode(err, utils.CodeDuplicateEmail) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
	if got := UserMessage(err); got != friendly[utils.CodeDuplicateEmail] {
		t.Errorf("unexpected user message %q", got)
	}

	sess, err := anon.Login(ctx, "mai@clinic.test", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.Token == "" || sess.Role != models.RolePatient || sess.UserID.IsZero() {
		t.Errorf("unexpected session %+v", sess)
	}

	_, err = anon.Login(ctx, "mai@clinic.test", "nope-nope")
	if !IsKind(err, KindApplication) {
		t.Errorf("bad password: expected application error, got %v", err)
	}
}

func TestCreateSchedule_ValidationSendsNothing(t *testing.T) {
	f := newFixture(t)
	doctor, _ := f.as(models.RoleDoctor)

	tests := []ScheduleRequest{
		{SelectedSlots: nil, Dates: []time.Time{day("2025-06-16")}},
		{SelectedSlots: []int{1}},
		{SelectedSlots: []int{0}, Dates: []time.Time{day("2025-06-16")}},
	}
	for _, req := range tests {
		_, err := doctor.CreateSchedule(context.Background(), req)
		if !IsKind(err, KindValidation) {
			t.Errorf("%+v: expected validation error, got %v", req, err)
		}
	}
	if n := atomic.LoadInt64(&f.requests); n != 0 {
		t.Errorf("expected no requests, got %d", n)
	}
}

func TestScheduleRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor, doc := f.as(models.RoleDoctor)
	patient, _ := f.as(models.RolePatient)

	msg, err := doctor.CreateSchedule(ctx, ScheduleRequest{
		SelectedSlots: []int{1, 2},
		Dates:         []time.Time{day("2025-06-16"), day("2025-06-18")},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if msg != "Created 4 timeslots" {
		t.Errorf("unexpected message %q", msg)
	}

	_, err = doctor.CreateSchedule(ctx, ScheduleRequest{SelectedSlots: []int{2, 3}, Dates: []time.Time{day("2025-06-18")}})
	if !HasCode(err, utils.CodeSlotConflict) {
		t.Errorf("expected slot conflict, got %v", err)
	}

	week, err := doctor.ScheduleByWeek(ctx, primitive.NilObjectID, day("2025-06-16"), day("2025-06-22"))
	if err != nil || len(week) != 4 {
		t.Fatalf("by week: %d slots, %v", len(week), err)
	}

	sched, err := patient.DoctorSchedule(ctx, doc.ID, day("2025-06-17"), day("2025-06-22"))
	if err != nil || len(sched) != 2 {
		t.Errorf("doctor schedule: %d slots, %v", len(sched), err)
	}

	all, err := patient.TimeslotsByDoctor(ctx, doc.ID)
	if err != nil || len(all) != 4 {
		t.Errorf("timeslots by doctor: %d slots, %v", len(all), err)
	}

	_, err = patient.CreateSchedule(ctx, ScheduleRequest{SelectedSlots: []int{1}, Dates: []time.Time{day("2025-06-20")}})
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Kind != KindApplication || apiErr.Status != http.StatusForbidden {
		t.Errorf("patient create: expected 403 application error, got %v", err)
	}
}

func TestBookingLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor, doc := f.as(models.RoleDoctor)
	patient, _ := f.as(models.RolePatient)
	staff, _ := f.as(models.RoleStaff)
	svc := f.mem.PutService(models.Service{Name: "Cleaning", Price: 300000, DoctorIDs: []primitive.ObjectID{doc.ID}})

	if _, err := doctor.CreateSchedule(ctx, ScheduleRequest{SelectedSlots: []int{1, 2}, Dates: []time.Time{day("2025-06-16")}}); err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	detail, err := patient.ServiceDetail(ctx, svc.ID)
	if err != nil || len(detail.Timeslots) != 2 {
		t.Fatalf("service detail: %+v %v", detail, err)
	}
	first, second := detail.Timeslots[0], detail.Timeslots[1]

	booking, err := patient.Book(ctx, BookRequest{TimeslotID: first.ID, ServiceID: svc.ID, Note: "first visit"})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if booking.Payment == nil || booking.Payment.Amount != 300000 || !booking.Appointment.Actions.Edit {
		t.Errorf("unexpected booking %+v", booking)
	}

	_, err = patient.Book(ctx, BookRequest{TimeslotID: first.ID, ServiceID: svc.ID})
	if !HasCode(err, utils.CodeSlotUnavailable) {
		t.Errorf("double booking: expected slot unavailable, got %v", err)
	}

	moved, err := patient.EditAppointment(ctx, booking.Appointment.ID, second.ID, "moved")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if moved.TimeslotID != second.ID || moved.Note != "moved" {
		t.Errorf("unexpected appointment %+v", moved)
	}

	list, err := patient.Appointments(ctx, models.StatusPending)
	if err != nil || len(list) != 1 || list[0].Timeslot == nil {
		t.Fatalf("appointments: %+v %v", list, err)
	}

	cancelled, err := patient.CancelAppointment(ctx, booking.Appointment.ID, "ACB 123456", "travel")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Refund == nil || cancelled.Appointment.Status != models.StatusCancelled {
		t.Fatalf("unexpected cancellation %+v", cancelled)
	}

	refund, err := staff.ConfirmRefund(ctx, cancelled.Refund.ID)
	if err != nil || refund.Status != models.RefundRefunded {
		t.Fatalf("confirm: %+v %v", refund, err)
	}
	_, err = staff.ConfirmRefund(ctx, cancelled.Refund.ID)
	if !HasCode(err, utils.CodeInvalidState) {
		t.Errorf("second confirm: expected invalid state, got %v", err)
	}

	got, err := patient.Appointment(ctx, booking.Appointment.ID)
	if err != nil || got.Actions.Cancel || got.Actions.Edit {
		t.Errorf("cancelled appointment: %+v %v", got, err)
	}
}

func TestTransportErrors(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()

	c := New(url, Session{Token: "t"})
	_, err := c.TimeslotsByDoctor(context.Background(), primitive.NewObjectID())
	if !IsKind(err, KindTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if UserMessage(err) != transportMessage {
		t.Errorf("unexpected user message %q", UserMessage(err))
	}

	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer proxy.Close()
	_, err = New(proxy.URL, Session{}).Appointments(context.Background(), "")
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindTransport {
		t.Fatalf("expected transport error for non-envelope body, got %v", err)
	}
	if e.Status != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", e.Status)
	}
}

func TestSessionIsInjected(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", Session{Token: "abc"})
	if _, err := c.Appointments(context.Background(), ""); err != nil {
		t.Fatalf("appointments: %v", err)
	}
	if gotAuth != "Bearer abc" {
		t.Errorf("expected bearer token, got %q", gotAuth)
	}

	other := c.WithSession(Session{Token: "xyz"})
	if _, err := other.Appointments(context.Background(), ""); err != nil {
		t.Fatalf("appointments: %v", err)
	}
	if gotAuth != "Bearer xyz" || c.Session().Token != "abc" {
		t.Errorf("WithSession must not touch the original client")
	}
}
