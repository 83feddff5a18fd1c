package routes

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shehan-anujaya/SmartQ/analytics"
	"github.com/shehan-anujaya/SmartQ/appointments"
	"github.com/shehan-anujaya/SmartQ/auth"
	"github.com/shehan-anujaya/SmartQ/counters"
	"github.com/shehan-anujaya/SmartQ/display"
	"github.com/shehan-anujaya/SmartQ/insights"
	"github.com/shehan-anujaya/SmartQ/middleware"
	"github.com/shehan-anujaya/SmartQ/queue"
	"github.com/shehan-anujaya/SmartQ/ratelim"
	"github.com/shehan-anujaya/SmartQ/services"
	"github.com/shehan-anujaya/SmartQ/utils"
)

func AddAuthRoutes(router *httprouter.Router) {
	router.POST("/api/auth/register", ratelim.RateLimit(auth.Register))
	router.POST("/api/auth/login", ratelim.RateLimit(auth.Login))
	router.POST("/api/auth/logout", middleware.Authenticate(auth.LogoutUser))
	router.POST("/api/auth/token/refresh", ratelim.RateLimit(middleware.Authenticate(auth.RefreshToken)))
	router.PUT("/api/auth/users/:userid/roles", middleware.RequireRoles(auth.SetUserRole, "admin"))
}

func AddServiceRoutes(router *httprouter.Router) {
	router.GET("/api/services", ratelim.RateLimit(services.ListServices))
	router.GET("/api/services/:serviceid", services.GetService)
	router.GET("/api/services/:serviceid/estimate", ratelim.RateLimit(queue.GetEstimate))

	router.POST("/api/services", middleware.RequireRoles(services.CreateService, "admin"))
	router.PUT("/api/services/:serviceid", middleware.RequireRoles(services.UpdateService, "admin"))
	router.DELETE("/api/services/:serviceid", middleware.RequireRoles(services.DeleteService, "admin"))
}

func AddCounterRoutes(router *httprouter.Router) {
	router.GET("/api/counters", middleware.RequireRoles(counters.ListCounters, "staff", "admin"))
	router.GET("/api/counters/:counterid", middleware.RequireRoles(counters.GetCounter, "staff", "admin"))
	router.PUT("/api/counters/:counterid/status", middleware.RequireRoles(counters.SetCounterStatus, "staff", "admin"))

	router.POST("/api/counters", middleware.RequireRoles(counters.CreateCounter, "admin"))
	router.PUT("/api/counters/:counterid", middleware.RequireRoles(counters.UpdateCounter, "admin"))
	router.DELETE("/api/counters/:counterid", middleware.RequireRoles(counters.DeleteCounter, "admin"))
}

func AddQueueRoutes(router *httprouter.Router) {
	router.POST("/api/queue/join", ratelim.RateLimit(middleware.Authenticate(queue.JoinQueue)))
	router.GET("/api/queue/entry/:entryid", middleware.Authenticate(queue.GetQueueEntry))
	router.POST("/api/queue/entry/:entryid/cancel", middleware.Authenticate(queue.CancelEntry))
	router.GET("/api/queue/entry/:entryid/token", ratelim.RateLimit(middleware.Authenticate(queue.PrintToken)))
	router.GET("/api/queue/verify", ratelim.RateLimit(queue.VerifyToken))

	router.POST("/api/queue/service/:serviceid/call-next", middleware.RequireRoles(queue.CallNext, "staff", "admin"))
	router.GET("/api/queue/service/:serviceid/entries", middleware.RequireRoles(queue.ListEntries, "staff", "admin"))
	router.POST("/api/queue/entry/:entryid/transition", middleware.RequireRoles(queue.TransitionEntry, "staff", "admin"))

	router.GET("/api/queues", middleware.RequireRoles(queue.ListQueues, "admin"))
}

func AddAppointmentRoutes(router *httprouter.Router) {
	router.POST("/api/appointments", ratelim.RateLimit(middleware.Authenticate(appointments.CreateAppointment)))
	router.GET("/api/appointments/mine", middleware.Authenticate(appointments.ListAppointments))
	router.GET("/api/appointments/appointment/:appointmentid", middleware.Authenticate(appointments.GetAppointment))
	router.PUT("/api/appointments/appointment/:appointmentid", middleware.Authenticate(appointments.UpdateAppointment))
	router.PUT("/api/appointments/appointment/:appointmentid/cancel", middleware.Authenticate(appointments.CancelAppointment))
	router.POST("/api/appointments/appointment/:appointmentid/checkin", ratelim.RateLimit(middleware.Authenticate(appointments.CheckIn)))

	router.PUT("/api/appointments/appointment/:appointmentid/status", middleware.RequireRoles(appointments.SetAppointmentStatus, "staff", "admin"))
}

func AddDisplayRoutes(router *httprouter.Router) {
	router.GET("/api/display/board", display.HandleWS)
	router.GET("/api/display/board/:serviceid", display.HandleWS)
	router.GET("/api/display/snapshot/:serviceid", ratelim.RateLimit(display.Snapshot))
}

func AddAnalyticsRoutes(router *httprouter.Router) {
	router.GET("/api/analytics/peak-hours", middleware.RequireRoles(analytics.PeakHours, "admin"))
	router.GET("/api/analytics/service-stats", middleware.RequireRoles(analytics.ServiceStats, "admin"))
	router.GET("/api/reports/daily.pdf", middleware.RequireRoles(analytics.DailyReport, "admin"))
	router.GET("/api/insights/summary", middleware.RequireRoles(insights.Summary, "staff", "admin"))
}

func AddUtilityRoutes(router *httprouter.Router, rateLimiter *ratelim.RateLimiter) {
	router.GET("/api/csrf", rateLimiter.Limit(middleware.Authenticate(utils.CSRF)))
}

func AddOpsRoutes(router *httprouter.Router) {
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())
}
