package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"prodboard_backend/internal/config"
	"prodboard_backend/internal/domain"
	"prodboard_backend/internal/events"
	"prodboard_backend/internal/identity"
	"prodboard_backend/internal/metrics"
	"prodboard_backend/internal/service"
	"prodboard_backend/internal/ws"
)

// Stores groups the repository implementations the router wires into the
// services. Both store dialects satisfy it.
type Stores struct {
	Conversations domain.ConversationRepository
	Participants  domain.ParticipantRepository
	Messages      domain.MessageRepository
	Notifications domain.NotificationRepository
	Profiles      domain.ProfileRepository
}

// NewRouter constructs the main HTTP router and wires routes, services, and
// middleware.
func NewRouter(cfg *config.Config, st Stores, broker *events.Broker, tokens *identity.TokenService, log *zap.SugaredLogger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Services
	msgSvc := service.NewMessageService(st.Conversations, st.Participants, st.Messages, broker, log, cfg.MaxMessagesPerConversation)
	convSvc := service.NewConversationService(st.Conversations, st.Participants, st.Messages, st.Profiles, msgSvc, log, cfg.MaxMessagesPerConversation)
	notifSvc := service.NewNotificationService(st.Notifications, st.Messages, broker, log)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokens))

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", handleListConversations(convSvc))
				r.Post("/", handleStartConversation(convSvc))
				r.Get("/{conversationID}", handleGetConversation(convSvc))
				r.Patch("/{conversationID}", handleMarkConversationRead(msgSvc))
				r.Delete("/{conversationID}", handleDeleteConversation(convSvc))
				r.Get("/{conversationID}/messages", handleListMessages(msgSvc))
				r.Post("/{conversationID}/messages", handleCreateMessage(msgSvc))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", handleListNotifications(notifSvc))
				r.Patch("/", handleMarkAllNotificationsRead(notifSvc))
			})

			r.Get("/unread-count", handleUnreadCount(notifSvc))
		})
	})

	// Propagation channel
	r.Get("/ws", ws.MakeHandler(broker, tokens, cfg.CORSOrigins, log))

	return r
}

// requestLogger logs one structured line per request.
func requestLogger(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(wrapped, r)
			log.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.Status(),
				"bytes", wrapped.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
