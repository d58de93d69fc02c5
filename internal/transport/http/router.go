package http

import (
	"net/http"
	"time"

	"contest-service/internal/app"
	"contest-service/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Services are the use cases exposed over HTTP.
type Services struct {
	Contests     *app.ContestService
	Leaderboards *app.LeaderboardService
	Feed         *app.LeaderboardFeed
	Mastery      *app.MasteryService
	Content      *app.ContentService
}

// Router wires the REST and websocket endpoints.
type Router struct {
	svc  Services
	auth *Authenticator
	log  *logger.Logger
	ws   *WSHandler
}

func NewRouter(svc Services, auth *Authenticator, log *logger.Logger) *Router {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "http")
	return &Router{
		svc:  svc,
		auth: auth,
		log:  log,
		ws:   NewWSHandler(svc.Feed, log),
	}
}

// Handler builds the chi mux. metrics may be nil.
func (rt *Router) Handler(metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(rt.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(rt.auth.Middleware)

		r.Route("/contests/{contestID}", func(r chi.Router) {
			r.Post("/register", rt.handleRegister)
			r.Post("/enter", rt.handleEnter)
			r.Post("/progress", rt.handleProgress)
			r.Post("/scores", rt.handleSubmitScores)
			r.Get("/summary", rt.handleSummary)
			r.Get("/leaderboard", rt.handleLeaderboard)
			r.Get("/leaderboard/ws", rt.ws.ServeWS)
			r.Get("/play/levels/{level}/rounds/{round}", rt.handleRoundContent)
		})
		r.Post("/events", rt.handleLogEvent)
		r.Get("/mastery/{language}", rt.handleMastery)
	})
	return r
}

func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		kv := []interface{}{
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case ww.Status() >= 500:
			rt.log.Error("request completed with server error", kv...)
		case ww.Status() >= 400:
			rt.log.Warn("request completed with client error", kv...)
		default:
			rt.log.Debug("request completed", kv...)
		}
	})
}
