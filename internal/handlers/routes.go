package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/clinic-booking-api/internal/middleware"
	"github.com/harentsoaR/clinic-booking-api/internal/models"
)

// RegisterRoutes mounts every endpoint on r. Everything below /api and /app
// needs a bearer token except the payment webhook, which the gateway calls
// with its own shared secret.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", h.RegisterUser)
		authRoutes.POST("/login", h.Login)
	}

	r.POST("/api/payments/webhook", h.PaymentWebhook)

	admin := middleware.RequireRole()
	staff := middleware.RequireRole(models.RoleStaff)
	doctorOrStaff := middleware.RequireRole(models.RoleDoctor, models.RoleStaff)
	patient := middleware.RequireRole(models.RolePatient)

	apiRoutes := r.Group("/api")
	apiRoutes.Use(middleware.AuthMiddleware(h.Tokens))
	{
		apiRoutes.GET("/me", h.GetCurrentUser)
		apiRoutes.PUT("/me", h.UpdateCurrentUser)
		apiRoutes.POST("/users", admin, h.CreateUser)

		// Schedules
		apiRoutes.GET("/slot-templates", h.GetSlotTemplates)
		apiRoutes.POST("/doctor/create-schedule", doctorOrStaff, h.CreateSchedule)
		apiRoutes.GET("/doctor/getScheduleByWeek", doctorOrStaff, h.GetScheduleByWeek)
		apiRoutes.GET("/doctor-schedule", h.GetDoctorSchedule)
		apiRoutes.GET("/timeslots/doctor/:doctorId", h.GetTimeslotsByDoctor)

		// Services
		apiRoutes.GET("/services", h.GetServices)
		apiRoutes.GET("/view-detail/service/:serviceId", h.GetServiceDetail)

		// Appointments
		apiRoutes.POST("/appointments", patient, h.BookAppointment)
		apiRoutes.GET("/appointments", h.GetAppointments)
		apiRoutes.GET("/appointments/:id", h.GetAppointment)
		apiRoutes.PUT("/appointments/:id", h.EditAppointment)
		apiRoutes.PATCH("/appointments/:id/status", doctorOrStaff, h.UpdateAppointmentStatus)
		apiRoutes.PUT("/appointments/cancel/:id", h.CancelAppointment)

		// Refunds
		apiRoutes.GET("/refunds", staff, h.GetRefunds)
	}

	appRoutes := r.Group("/app")
	appRoutes.Use(middleware.AuthMiddleware(h.Tokens), staff)
	{
		appRoutes.PUT("/refunds/confirm/:id", h.ConfirmRefund)
	}
}
