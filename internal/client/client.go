// Package client is a typed Go client for the clinic booking API. Every
// method returns either its decoded payload or an *Error; callers never see
// the raw response envelope.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-booking-api/internal/models"
	"github.com/harentsoaR/clinic-booking-api/internal/schedule"
)

// Session identifies the signed-in user. It is fixed for the lifetime of a
// Client; sign in again to get a new one.
type Session struct {
	Token  string
	UserID primitive.ObjectID
	Role   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger logs failed calls at debug level.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

type Client struct {
	baseURL    string
	session    Session
	httpClient *http.Client
	logger     zerolog.Logger
}

func New(baseURL string, session Session, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    session,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Session() Session { return c.session }

// WithSession returns a copy of c acting as another user.
func (c *Client) WithSession(s Session) *Client {
	cp := *c
	cp.session = s
	return &cp
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
}

// do sends one request and decodes the envelope's data into out. It returns
// the envelope message alongside.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) (string, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return "", &Error{Kind: KindValidation, Message: "could not encode request", Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return "", &Error{Kind: KindTransport, Message: "could not build request", Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return "", &Error{Kind: KindTransport, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &Error{Kind: KindTransport, Status: resp.StatusCode, Message: "could not read response", Err: err}
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", &Error{
			Kind:    KindTransport,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("unexpected %s response", resp.Status),
			Err:     err,
		}
	}
	if !env.Success || resp.StatusCode >= http.StatusBadRequest {
		c.logger.Debug().
			Int("status", resp.StatusCode).
			Str("code", env.Code).
			Str("path", path).
			Msg(env.Message)
		return env.Message, &Error{Kind: KindApplication, Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return env.Message, &Error{Kind: KindTransport, Status: resp.StatusCode, Message: "could not decode response data", Err: err}
		}
	}
	return env.Message, nil
}

func dateQuery(from, to time.Time) url.Values {
	q := url.Values{}
	if !from.IsZero() {
		q.Set("startDate", from.Format(schedule.DateLayout))
	}
	if !to.IsZero() {
		q.Set("endDate", to.Format(schedule.DateLayout))
	}
	return q
}

func validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Appointment is an appointment as the API returns it, with the actions the
// caller may take on it right now.
type Appointment struct {
	models.Appointment
	Actions schedule.Actions `json:"actions"`
}

// Booking is the result of a successful booking.
type Booking struct {
	Appointment Appointment     `json:"appointment"`
	Payment     *models.Payment `json:"payment"`
}

// Cancellation is the result of a successful cancellation. Refund is nil
// when no refund account was given.
type Cancellation struct {
	Appointment Appointment    `json:"appointment"`
	Refund      *models.Refund `json:"refund"`
}

type RegisterRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

// Register signs up a patient account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" || strings.TrimSpace(req.FullName) == "" {
		return nil, validation("name, email and password are required")
	}
	var u models.User
	if _, err := c.do(ctx, http.MethodPost, "/auth/register", nil, req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login exchanges credentials for a session. The receiver's own session is
// not used or changed.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return Session{}, validation("email and password are required")
	}
	var out struct {
		Token string       `json:"token"`
		User  *models.User `json:"user"`
	}
	body := map[string]string{"email": email, "password": password}
	if _, err := c.withoutSession().do(ctx, http.MethodPost, "/auth/login", nil, body, &out); err != nil {
		return Session{}, err
	}
	if out.User == nil || out.Token == "" {
		return Session{}, &Error{Kind: KindTransport, Message: "login response is missing the token"}
	}
	return Session{Token: out.Token, UserID: out.User.ID, Role: out.User.Role}, nil
}

func (c *Client) withoutSession() *Client {
	return c.WithSession(Session{})
}

// TimeslotsByDoctor lists every timeslot a doctor has opened.
func (c *Client) TimeslotsByDoctor(ctx context.Context, doctorID primitive.ObjectID) ([]models.Timeslot, error) {
	var slots []models.Timeslot
	if _, err := c.do(ctx, http.MethodGet, "/api/timeslots/doctor/"+doctorID.Hex(), nil, nil, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// DoctorSchedule returns a doctor's timeslots between from and to inclusive.
func (c *Client) DoctorSchedule(ctx context.Context, doctorID primitive.ObjectID, from, to time.Time) ([]models.Timeslot, error) {
	q := dateQuery(from, to)
	q.Set("doctorId", doctorID.Hex())
	var out struct {
		Timeslots []models.Timeslot `json:"timeslots"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/api/doctor-schedule", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Timeslots, nil
}

// ScheduleByWeek returns the timeslots the caller manages in the window.
// doctorID is required for staff and must be zero or the caller's own id
// for doctors.
func (c *Client) ScheduleByWeek(ctx context.Context, doctorID primitive.ObjectID, from, to time.Time) ([]models.Timeslot, error) {
	q := dateQuery(from, to)
	if !doctorID.IsZero() {
		q.Set("doctorId", doctorID.Hex())
	}
	var slots []models.Timeslot
	if _, err := c.do(ctx, http.MethodGet, "/api/doctor/getScheduleByWeek", q, nil, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// ScheduleRequest opens SelectedSlots on every one of Dates.
type ScheduleRequest struct {
	DoctorID      primitive.ObjectID
	SelectedSlots []int
	Dates         []time.Time
}

// CreateSchedule validates the selection and sends it as one batch. It
// returns the server's confirmation message. A rejected batch created
// nothing.
func (c *Client) CreateSchedule(ctx context.Context, req ScheduleRequest) (string, error) {
	if err := schedule.ValidateSelection(req.SelectedSlots, req.Dates); err != nil {
		return "", &Error{Kind: KindValidation, Message: err.Error(), Err: err}
	}
	body := struct {
		DoctorID      string   `json:"doctorId,omitempty"`
		SelectedSlots []int    `json:"selected_slots"`
		Dates         []string `json:"dates"`
	}{SelectedSlots: req.SelectedSlots}
	if !req.DoctorID.IsZero() {
		body.DoctorID = req.DoctorID.Hex()
	}
	for _, d := range req.Dates {
		body.Dates = append(body.Dates, schedule.CivilDate(d).Format(schedule.DateLayout))
	}
	return c.do(ctx, http.MethodPost, "/api/doctor/create-schedule", nil, body, nil)
}

// ServiceDetail returns a service with the upcoming timeslots of its
// doctors.
func (c *Client) ServiceDetail(ctx context.Context, serviceID primitive.ObjectID) (*models.Service, error) {
	var svc models.Service
	if _, err := c.do(ctx, http.MethodGet, "/api/view-detail/service/"+serviceID.Hex(), nil, nil, &svc); err != nil {
		return nil, err
	}
	return &svc, nil
}

type BookRequest struct {
	TimeslotID primitive.ObjectID
	ServiceID  primitive.ObjectID
	ClinicID   primitive.ObjectID
	Note       string
}

func (c *Client) Book(ctx context.Context, req BookRequest) (*Booking, error) {
	if req.TimeslotID.IsZero() || req.ServiceID.IsZero() {
		return nil, validation("select a service and a timeslot")
	}
	body := map[string]string{
		"timeslotId": req.TimeslotID.Hex(),
		"serviceId":  req.ServiceID.Hex(),
		"note":       req.Note,
	}
	if !req.ClinicID.IsZero() {
		body["clinicId"] = req.ClinicID.Hex()
	}
	var b Booking
	if _, err := c.do(ctx, http.MethodPost, "/api/appointments", nil, body, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Appointments lists the appointments the session may see, optionally by
// status.
func (c *Client) Appointments(ctx context.Context, status string) ([]Appointment, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	var out []Appointment
	if _, err := c.do(ctx, http.MethodGet, "/api/appointments", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Appointment(ctx context.Context, id primitive.ObjectID) (*Appointment, error) {
	var a Appointment
	if _, err := c.do(ctx, http.MethodGet, "/api/appointments/"+id.Hex(), nil, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// EditAppointment moves an appointment to timeslotID and replaces its note.
// Passing the current timeslot only updates the note.
func (c *Client) EditAppointment(ctx context.Context, id, timeslotID primitive.ObjectID, note string) (*Appointment, error) {
	if timeslotID.IsZero() {
		return nil, validation("select a timeslot")
	}
	body := map[string]string{"timeslotId": timeslotID.Hex(), "note": note}
	var a Appointment
	if _, err := c.do(ctx, http.MethodPut, "/api/appointments/"+id.Hex(), nil, body, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// CancelAppointment cancels a pending appointment. A non-empty
// refundAccount asks for the payment to be refunded there.
func (c *Client) CancelAppointment(ctx context.Context, id primitive.ObjectID, refundAccount, reason string) (*Cancellation, error) {
	body := map[string]string{"refundAccount": refundAccount, "reason": reason}
	var out Cancellation
	if _, err := c.do(ctx, http.MethodPut, "/api/appointments/cancel/"+id.Hex(), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmRefund marks a refund as paid out. Staff only.
func (c *Client) ConfirmRefund(ctx context.Context, refundID primitive.ObjectID) (*models.Refund, error) {
	var r models.Refund
	if _, err := c.do(ctx, http.MethodPut, "/app/refunds/confirm/"+refundID.Hex(), nil, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
