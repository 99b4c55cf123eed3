package http

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"mindlink/internal/handlers"
	"mindlink/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	DB          *sql.DB
	Minds       *service.MindService
	Feeds       *service.FeedService
	Narratives  *service.NarrativeService
	Expressions *service.ExpressionService
	Mindmaps    *service.MindmapService
	Chats       *service.ChatService
}

// NewRouter creates the HTTP router with all routes wired.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	mindHandler := handlers.NewMindHandler(deps.Minds)
	feedHandler := handlers.NewFeedHandler(deps.Feeds)
	narrativeHandler := handlers.NewNarrativeHandler(deps.Narratives)
	outputHandler := handlers.NewOutputHandler(deps.Expressions)
	mindmapHandler := handlers.NewMindmapHandler(deps.Mindmaps)
	chatHandler := handlers.NewChatHandler(deps.Chats)
	healthHandler := handlers.NewHealthHandler(deps.DB)

	r.Route("/topics", func(r chi.Router) {
		r.Post("/", mindHandler.Create)
		r.Get("/", mindHandler.List)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", mindHandler.Get)
			r.Delete("/", mindHandler.Delete)
			r.Get("/document", mindHandler.Document)
			r.Get("/timeline", feedHandler.Timeline)

			r.Post("/fragments", feedHandler.Submit)
			r.Get("/fragments", feedHandler.List)

			r.Post("/narrative", narrativeHandler.Generate)
			r.Post("/output", outputHandler.Generate)
			r.Get("/outputs", outputHandler.List)

			r.Get("/mindmap", mindmapHandler.Get)
			r.Post("/mindmap", mindmapHandler.Regenerate)

			r.Post("/chat", chatHandler.Send)
			r.Get("/chat/history", chatHandler.History)
			r.Delete("/chat/history", chatHandler.Clear)
		})
	})

	r.Put("/fragments/{id}", feedHandler.Update)
	r.Delete("/fragments/{id}", feedHandler.Delete)

	r.Get("/chat/models", chatHandler.Models)
	r.Get("/chat/styles", chatHandler.Styles)

	r.Method(http.MethodGet, "/health", healthHandler)

	return r
}
