package web

import (
	"github.com/faceattend/faceattend/internal/web/handlers"
	"github.com/faceattend/faceattend/internal/web/middleware"
	"github.com/go-chi/chi/v5"
)

func (s *Server) setupRoutes(deps Deps) {
	registerHandler := handlers.NewRegisterHandler(deps.Engine, s.config.Match.MaxUploadBytes, s.config.Match.MaxImageDim)
	recognizeHandler := handlers.NewRecognizeHandler(deps.Engine, s.config.Match.MaxUploadBytes, s.config.Match.MaxImageDim)
	usersHandler := handlers.NewUsersHandler(deps.Identities)
	attendanceHandler := handlers.NewAttendanceHandler(deps.Records)
	adminHandler := handlers.NewAdminHandler(deps.Admins)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	if deps.Metrics != nil {
		s.router.Method("GET", "/metrics", deps.Metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		// Kiosk endpoints. The kiosk device is trusted; it has no login.
		r.Post("/register", registerHandler.Register)
		r.Post("/recognize", recognizeHandler.RecognizeIn)
		r.Post("/recognizeout", recognizeHandler.RecognizeOut)
		r.Get("/registered-users", usersHandler.List)

		r.Post("/admin/register", adminHandler.Register)
		r.Post("/admin/login", adminHandler.Login)

		// Reporting requires an admin token.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(deps.Admins))
			r.Get("/admin/attendancelist", attendanceHandler.List)
		})
	})
}
