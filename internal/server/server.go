package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hostel-inventory/apiserver/config"
	"github.com/hostel-inventory/apiserver/internal/db"
	"github.com/hostel-inventory/apiserver/internal/handlers"
	"github.com/hostel-inventory/apiserver/internal/mail"
	"github.com/hostel-inventory/apiserver/internal/metrics"
	"github.com/hostel-inventory/apiserver/internal/mq"
	"github.com/hostel-inventory/apiserver/internal/services"
	"github.com/hostel-inventory/apiserver/internal/session"
	"github.com/hostel-inventory/apiserver/internal/storage"
	"github.com/hostel-inventory/apiserver/internal/store"
	"github.com/redis/go-redis/v9"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	redis      *redis.Client
}

// Services groups everything the HTTP layer needs.
type Services struct {
	Users         *services.UserService
	Rooms         *services.RoomService
	Assets        *services.AssetService
	DamageReports *services.DamageReportService
	Dashboard     *services.DashboardService
	Sessions      *session.Manager
	Metrics       *metrics.Metrics
	DB            handlers.Pinger
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	srv := &Server{db: dbConn}

	sessionStore, err := srv.openSessionStore(ctx, cfg)
	if err != nil {
		srv.Shutdown(ctx)
		return nil, err
	}

	mailer, err := srv.openMailer(ctx, cfg)
	if err != nil {
		srv.Shutdown(ctx)
		return nil, err
	}

	var photos services.PhotoStorage
	objects, err := storage.Open(ctx, cfg.Storage)
	switch {
	case errors.Is(err, storage.ErrDisabled):
		slog.Info("damage report photos disabled")
	case err != nil:
		srv.Shutdown(ctx)
		return nil, err
	default:
		photos = objects
	}

	m := metrics.New()
	userRepo := store.NewUserRepository(dbConn)
	roomRepo := store.NewRoomRepository(dbConn)
	assetRepo := store.NewAssetRepository(dbConn)
	reportRepo := store.NewDamageReportRepository(dbConn)

	srv.router = NewRouter(cfg, Services{
		Users:         services.NewUserService(userRepo, mailer, m),
		Rooms:         services.NewRoomService(roomRepo),
		Assets:        services.NewAssetService(assetRepo, roomRepo, m),
		DamageReports: services.NewDamageReportService(reportRepo, roomRepo, photos),
		Dashboard:     services.NewDashboardService(store.NewSummaryRepository(dbConn)),
		Sessions:      session.NewManager(sessionStore, cfg.Session),
		Metrics:       m,
		DB:            dbConn,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8000
	}

	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

// NewRouter mounts every API route on a fresh chi router.
func NewRouter(cfg config.Config, svc Services) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.StripSlashes,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRFToken", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		svc.Metrics.Middleware,
	)

	router.Get("/healthz", handlers.Healthz(svc.DB))
	router.Method(http.MethodGet, "/metrics", svc.Metrics.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, svc.Users, svc.Sessions)
		})

		r.Group(func(r chi.Router) {
			r.Use(handlers.RequireActiveUser(svc.Sessions, svc.Users))
			r.Route("/rooms", func(r chi.Router) {
				handlers.RoomRouter(r, svc.Rooms)
			})
			r.Route("/assets", func(r chi.Router) {
				handlers.AssetRouter(r, svc.Assets)
			})
			r.Route("/damage-reports", func(r chi.Router) {
				handlers.DamageReportRouter(r, svc.DamageReports)
			})
			r.Route("/dashboard", func(r chi.Router) {
				handlers.DashboardRouter(r, svc.Dashboard)
			})
		})
	})
	return router
}

func (s *Server) openSessionStore(ctx context.Context, cfg config.Config) (session.Store, error) {
	switch cfg.Session.Backend {
	case "", "postgres":
		return store.NewSessionStore(s.db), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.redis = client
		return session.NewRedisStore(client), nil
	case "memory":
		slog.Warn("using in-memory sessions; logins will not survive a restart")
		return session.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported session backend %q", cfg.Session.Backend)
	}
}

func (s *Server) openMailer(ctx context.Context, cfg config.Config) (mail.Sender, error) {
	switch cfg.Mail.Transport {
	case "smtp":
		return mail.NewSMTPSender(cfg.Mail), nil
	case "queue":
		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return nil, fmt.Errorf("open mail queue: %w", err)
		}
		s.queue = queue
		return mail.NewQueueSender(queue, cfg.MQ.EmailQueue), nil
	case "", "log":
		return mail.LogSender{}, nil
	default:
		return nil, fmt.Errorf("unsupported mail transport %q", cfg.Mail.Transport)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	slog.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases backing connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		errs = append(errs, s.httpServer.Shutdown(ctx))
	}
	if s.queue != nil {
		errs = append(errs, s.queue.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}
