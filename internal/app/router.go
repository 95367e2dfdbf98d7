package app

import "github.com/gin-gonic/gin"

// NewRouter wires the HTTP API. auth guards everything under /api.
func NewRouter(a *App, auth gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), AccessLog(a.logger()), Recovery(a.logger()))

	router.GET("/healthz", a.HealthHandler)
	router.GET("/readyz", a.ReadyHandler)

	// OAuth2 callback (must be before auth middleware)
	router.GET("/oauth2callback", a.GoogleOAuth2CallbackHandler)

	api := router.Group("/api", auth)
	{
		tutors := api.Group("/tutors")
		{
			tutors.POST("/:id/lessons", a.CreateLessonsHandler)
			tutors.POST("/:id/lessons/preview", a.PreviewLessonsHandler)
			tutors.PUT("/:id/lessons/:lesson_id", a.UpdateLessonHandler)
			tutors.GET("/:id/lessons", a.ListLessonsHandler)
			tutors.GET("/:id/busy", a.BusyHandler)
			tutors.GET("/:id/open-slots", a.OpenSlotsHandler)
		}
		api.DELETE("/lessons/:id", a.CancelLessonHandler)

		calendar := api.Group("/calendar")
		{
			calendar.GET("/auth", a.GoogleAuthHandler)
		}
	}
	return router
}
