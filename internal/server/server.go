package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/dukerupert/beanjar/internal/handler"
	"github.com/dukerupert/beanjar/internal/ledger"
	"github.com/dukerupert/beanjar/internal/metrics"
	"github.com/dukerupert/beanjar/internal/middleware"
	"github.com/dukerupert/beanjar/internal/oracle"
	"github.com/dukerupert/beanjar/internal/push"
	"github.com/dukerupert/beanjar/internal/store"
	ws "github.com/dukerupert/beanjar/internal/websocket"
)

// Options carries the collaborators the server cannot build itself.
type Options struct {
	Oracle      oracle.Oracle
	Push        *push.Service
	Notifier    *push.Notifier
	Metrics     *metrics.Metrics
	CORSOrigins []string
	Logger      *slog.Logger
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	metrics     *metrics.Metrics
	corsOrigins []string
	familyH     *handler.FamilyHandler
	memberH     *handler.MemberHandler
	taskH       *handler.TaskHandler
	transferH   *handler.TransferHandler
	routineH    *handler.RoutineHandler
	jerryH      *handler.JerryHandler
	pushH       *handler.PushHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, opts Options) *Server {
	logger := opts.Logger
	hub := ws.NewHub(logger.With("component", "websocket"))

	familyStore := store.NewFamilyStore(db)
	memberStore := store.NewMemberStore(db)
	taskStore := store.NewTaskStore(db)
	transactionStore := store.NewTransactionStore(db)
	routineStore := store.NewRoutineStore(db)
	pushStore := store.NewPushStore(db)

	ledgerSvc := ledger.NewService(db, opts.Metrics, logger.With("component", "ledger"))
	handlerLogger := logger.With("component", "handler")

	o := opts.Oracle
	if o == nil {
		o = oracle.Heuristic{}
	}

	return &Server{
		db:          db,
		hub:         hub,
		metrics:     opts.Metrics,
		corsOrigins: opts.CORSOrigins,
		familyH:     handler.NewFamilyHandler(familyStore, memberStore, hub, handlerLogger),
		memberH:     handler.NewMemberHandler(db, memberStore, familyStore, hub, handlerLogger),
		taskH:       handler.NewTaskHandler(taskStore, memberStore, ledgerSvc, hub, opts.Notifier, handlerLogger),
		transferH:   handler.NewTransferHandler(transactionStore, memberStore, ledgerSvc, hub, opts.Notifier, handlerLogger),
		routineH:    handler.NewRoutineHandler(routineStore, taskStore, memberStore, ledgerSvc, hub, opts.Notifier, handlerLogger),
		jerryH:      handler.NewJerryHandler(o, handlerLogger),
		pushH:       handler.NewPushHandler(pushStore, memberStore, opts.Push, handlerLogger),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// Hub returns the WebSocket hub for broadcasting.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// RateLimiter returns the rate limiter so the caller can run its janitor.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket"), s.corsOrigins))

	// Families
	mux.HandleFunc("GET /api/families", s.familyH.List)
	mux.HandleFunc("POST /api/families", s.familyH.Create)
	mux.HandleFunc("GET /api/families/{id}", s.familyH.Get)
	mux.HandleFunc("PATCH /api/families/{id}", s.familyH.Update)

	// Members
	mux.HandleFunc("GET /api/members", s.memberH.List)
	mux.HandleFunc("POST /api/members", s.memberH.Create)
	mux.HandleFunc("PUT /api/members/{id}", s.memberH.Update)
	mux.HandleFunc("DELETE /api/members/{id}", s.memberH.Delete)
	mux.HandleFunc("GET /api/members/{id}/audit", s.memberH.Audit)
	mux.HandleFunc("PUT /api/members/{id}/pin", s.rateLimited(s.memberH.ChangePIN, 5, time.Minute))
	mux.HandleFunc("POST /api/members/{id}/pin/verify", s.rateLimited(s.memberH.VerifyPIN, 5, time.Minute))

	// Web push
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
	mux.HandleFunc("GET /api/members/{id}/push-subscriptions", s.pushH.List)
	mux.HandleFunc("POST /api/members/{id}/push-subscriptions", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/members/{id}/push-subscriptions/{sub_id}", s.pushH.Unsubscribe)

	// Tasks and votes
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PATCH /api/tasks/{id}", s.taskH.Patch)
	mux.HandleFunc("POST /api/tasks/{id}/votes", s.taskH.Vote)

	// Ledger
	mux.HandleFunc("POST /api/transfers", s.transferH.Transfer)
	mux.HandleFunc("GET /api/transactions", s.transferH.Transactions)

	// Routines
	mux.HandleFunc("GET /api/routines", s.routineH.List)
	mux.HandleFunc("POST /api/routines", s.routineH.Create)
	mux.HandleFunc("GET /api/routines/today", s.routineH.Today)
	mux.HandleFunc("PATCH /api/routines/{id}", s.routineH.Update)
	mux.HandleFunc("DELETE /api/routines/{id}", s.routineH.Delete)
	mux.HandleFunc("POST /api/routines/{id}/complete", s.routineH.Complete)

	// Judge Jerry
	mux.HandleFunc("POST /api/jerry/consult", s.rateLimited(s.jerryH.Consult, 10, time.Minute))
	mux.HandleFunc("POST /api/jerry/recommend-routines", s.rateLimited(s.jerryH.RecommendRoutines, 10, time.Minute))

	c := cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
	})

	return middleware.RequestLogger(s.logger.With("component", "http"), s.metrics)(c.Handler(mux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.HandlerFunc, limit int, window time.Duration) http.HandlerFunc {
	return middleware.RateLimit(s.rateLimiter, middleware.ByIPAndPath, limit, window)(h).ServeHTTP
}
