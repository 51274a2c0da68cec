package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups every endpoint the service exposes
type Handlers struct {
	Health      *HealthHandler
	Schedules   *ScheduleHandler
	Reminders   *ReminderHandler
	Events      *EventHandler
	Adherence   *AdherenceHandler
	Assignments *AssignmentHandler
	Patients    *PatientHandler
	Webhooks    *WebhookHandler
}

// RegisterRoutes mounts the handlers on r. apiMiddleware runs for /api/v1 only.
func RegisterRoutes(r gin.IRouter, h Handlers, gatherer prometheus.Gatherer, apiMiddleware ...gin.HandlerFunc) {
	r.GET("/health", h.Health.GetHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	webhooks := r.Group("/webhooks")
	webhooks.POST("/delivery-status", h.Webhooks.PostWebhooksDeliveryStatus)
	webhooks.POST("/inbound", h.Webhooks.PostWebhooksInbound)

	v1 := r.Group("/api/v1", apiMiddleware...)

	schedules := v1.Group("/schedules")
	schedules.POST("", h.Schedules.PostApiV1Schedules)
	schedules.GET("", h.Schedules.GetApiV1Schedules)
	schedules.GET("/:id", h.Schedules.GetApiV1SchedulesId)
	schedules.PATCH("/:id", h.Schedules.PatchApiV1SchedulesId)
	schedules.DELETE("/:id", h.Schedules.DeleteApiV1SchedulesId)
	schedules.POST("/:id/activate", h.Schedules.PostApiV1SchedulesIdActivate)
	schedules.POST("/:id/deactivate", h.Schedules.PostApiV1SchedulesIdDeactivate)
	schedules.POST("/:id/generate", h.Schedules.PostApiV1SchedulesIdGenerate)

	reminders := v1.Group("/reminders")
	reminders.GET("", h.Reminders.GetApiV1Reminders)
	reminders.GET("/:id", h.Reminders.GetApiV1RemindersId)
	reminders.POST("/:id/cancel", h.Reminders.PostApiV1RemindersIdCancel)
	reminders.GET("/:id/deliveries", h.Reminders.GetApiV1RemindersIdDeliveries)

	events := v1.Group("/events")
	events.POST("", h.Events.PostApiV1Events)
	events.GET("", h.Events.GetApiV1Events)
	events.PATCH("/:id", h.Events.PatchApiV1EventsId)
	events.DELETE("/:id", h.Events.DeleteApiV1EventsId)

	adherence := v1.Group("/adherence")
	adherence.GET("/stats", h.Adherence.GetApiV1AdherenceStats)
	adherence.GET("/chart", h.Adherence.GetApiV1AdherenceChart)
	adherence.POST("/reports", h.Adherence.PostApiV1AdherenceReports)
	adherence.GET("/reports", h.Adherence.GetApiV1AdherenceReports)
	adherence.GET("/reports/:id", h.Adherence.GetApiV1AdherenceReportsId)

	assignments := v1.Group("/assignments")
	assignments.PUT("/:id", h.Assignments.PutApiV1AssignmentsId)
	assignments.POST("/:id/confirm", h.Assignments.PostApiV1AssignmentsIdConfirm)

	patients := v1.Group("/patients")
	patients.PUT("/:id/contact", h.Patients.PutApiV1PatientsIdContact)
	patients.GET("/:id/export", h.Patients.GetApiV1PatientsIdExport)
	patients.DELETE("/:id/data", h.Patients.DeleteApiV1PatientsIdData)
}
