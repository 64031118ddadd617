package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/Dosada05/pong-tournaments/docs"
	"github.com/Dosada05/pong-tournaments/handlers"
	"github.com/Dosada05/pong-tournaments/middleware"
)

// SetupRoutes mounts the REST API under /api, the live socket endpoints under
// /ws and the operational endpoints at the root.
func SetupRoutes(
	router chi.Router,
	auth *middleware.JWTAuth,
	allowedOrigins []string,
	tournamentHandler *handlers.TournamentHandler,
	webSocketHandler *handlers.WebSocketHandler,
	healthHandler *handlers.HealthHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", healthHandler.Healthz)
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Route("/api/tournaments", func(r chi.Router) {
		r.Get("/{lobbyID}", tournamentHandler.SnapshotHandler)
		r.Post("/{lobbyID}/matches/{matchID}/complete", tournamentHandler.CompleteHandler)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Post("/", tournamentHandler.CreateHandler)
			r.Post("/{lobbyID}/join", tournamentHandler.JoinHandler)
			r.Post("/{lobbyID}/start", tournamentHandler.StartHandler)
			r.Post("/{lobbyID}/matches/{matchID}/room", tournamentHandler.AcquireRoomHandler)
			r.Delete("/{lobbyID}", tournamentHandler.DeleteHandler)
		})
	})

	router.Route("/ws", func(r chi.Router) {
		r.Use(auth.OptionalAuthenticate)

		r.Get("/", webSocketHandler.ServeWs)
		r.Get("/rooms/{roomID}/{role}", webSocketHandler.ServeWs)
		r.Get("/lobbies/{lobbyID}", webSocketHandler.ServeWs)
	})
}
