package handlers

import (
	"careops/internal/auth"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts every API route on the router
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	// Basic routes
	router.GET("/health", h.HealthHandler)

	// Auth routes (no auth required)
	router.POST("/auth/register", h.Register)
	router.POST("/auth/login", h.Login)

	// Public booking site
	public := router.Group("/public")
	{
		public.GET("/workspaces/:slug", h.GetPublicWorkspace)
		public.GET("/workspaces/:slug/services", h.ListPublicServices)
		public.GET("/workspaces/:slug/services/:service_id/availability", h.GetPublicAvailability)
		public.POST("/workspaces/:slug/bookings", h.CreatePublicBooking)
		public.POST("/workspaces/:slug/contact", h.SubmitPublicContact)
		public.GET("/forms/:submission_id", h.GetPublicSubmission)
		public.POST("/forms/:submission_id", h.SubmitPublicForm)
	}

	router.POST("/webhooks/telegram", h.TelegramWebhook)

	// Protected routes (auth required)
	protected := router.Group("")
	protected.Use(auth.Middleware(h.Issuer))
	{
		protected.GET("/auth/me", h.GetCurrentUser)

		protected.POST("/workspaces", h.CreateWorkspace)
		protected.GET("/workspaces", h.ListWorkspaces)

		jobs := protected.Group("/jobs", h.platformAdmin())
		jobs.GET("", h.ListJobs)
		jobs.POST("/:name/run", h.RunJob)
	}

	ws := protected.Group("/workspaces/:workspace_id")
	member := h.workspaceAccess(SectionAny)
	owner := h.workspaceAccess(SectionOwner)
	{
		ws.GET("", member, h.GetWorkspace)
		ws.PATCH("", owner, h.UpdateWorkspace)
		ws.POST("/activate", owner, h.ActivateWorkspace)
		ws.PUT("/onboarding", owner, h.UpdateOnboardingStep)
		ws.GET("/dashboard", member, h.DashboardStats)

		ws.POST("/staff", owner, h.InviteStaff)
		ws.GET("/staff", owner, h.ListStaff)
		ws.PUT("/staff/:member_id/permissions", owner, h.UpdateStaffPermissions)
		ws.DELETE("/staff/:member_id", owner, h.RemoveStaff)

		ws.POST("/integrations", owner, h.CreateIntegration)
		ws.GET("/integrations", owner, h.ListIntegrations)
		ws.POST("/integrations/telegram", owner, h.ConfigureTelegram)
		ws.GET("/integrations/google/connect", owner, h.GoogleConnect)
		ws.POST("/integrations/google/callback", owner, h.GoogleCallback)

		ws.GET("/notifications/status", owner, h.NotificationStatus)
		ws.POST("/notifications/test", owner, h.TestNotification)

		inbox := h.workspaceAccess(SectionInbox)
		ws.POST("/contacts", inbox, h.CreateContact)
		ws.GET("/contacts", inbox, h.ListContacts)
		ws.POST("/contact-forms", owner, h.CreateContactForm)
		ws.GET("/contact-forms", inbox, h.ListContactForms)
		ws.GET("/conversations", inbox, h.ListConversations)
		ws.GET("/conversations/:conversation_id/messages", inbox, h.GetMessages)
		ws.POST("/conversations/:conversation_id/messages", inbox, h.SendMessage)
		ws.PATCH("/conversations/:conversation_id", inbox, h.UpdateConversation)

		bookings := h.workspaceAccess(SectionBookings)
		ws.POST("/services", owner, h.CreateService)
		ws.GET("/services", member, h.ListServices)
		ws.POST("/services/:service_id/availability", owner, h.CreateAvailability)
		ws.GET("/services/:service_id/availability", member, h.ListAvailability)
		ws.POST("/bookings", bookings, h.CreateBooking)
		ws.GET("/bookings", bookings, h.ListBookings)
		ws.PATCH("/bookings/:booking_id", bookings, h.UpdateBooking)

		forms := h.workspaceAccess(SectionForms)
		ws.POST("/forms", owner, h.CreateForm)
		ws.GET("/forms", forms, h.ListForms)
		ws.GET("/submissions", forms, h.ListSubmissions)
		ws.PATCH("/submissions/:submission_id", forms, h.UpdateSubmission)

		inventory := h.workspaceAccess(SectionInventory)
		ws.POST("/inventory", inventory, h.CreateInventoryItem)
		ws.GET("/inventory", inventory, h.ListInventory)
		ws.PATCH("/inventory/:item_id", inventory, h.UpdateInventoryItem)
		ws.POST("/inventory/:item_id/usage", inventory, h.RecordUsage)

		ws.GET("/alerts", member, h.ListAlerts)
		ws.POST("/alerts/:alert_id/read", member, h.MarkAlertRead)
	}
}
