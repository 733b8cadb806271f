package apiserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	api "github.com/retinalab/retina-dashboard/api/v1"
	"github.com/retinalab/retina-dashboard/internal/auth"
	"github.com/retinalab/retina-dashboard/internal/config"
	v1 "github.com/retinalab/retina-dashboard/internal/handlers/v1"
	"github.com/retinalab/retina-dashboard/pkg/metrics"
	"github.com/retinalab/retina-dashboard/pkg/middleware"
	"github.com/retinalab/retina-dashboard/pkg/requestid"
	"go.uber.org/zap"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
	healthTimeout           = 2 * time.Second
)

// Pinger reports whether the metadata store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	cfg           *config.Config
	listener      net.Listener
	handler       *v1.ServiceHandler
	authenticator auth.Authenticator
	pinger        Pinger
}

// New returns a new instance of the dashboard api server.
func New(
	cfg *config.Config,
	listener net.Listener,
	handler *v1.ServiceHandler,
	authenticator auth.Authenticator,
	pinger Pinger,
) *Server {
	return &Server{
		cfg:           cfg,
		listener:      listener,
		handler:       handler,
		authenticator: authenticator,
		pinger:        pinger,
	}
}

// Router builds the http handler of the api.
func (s *Server) Router(metricMiddleware *metrics.Middleware) http.Handler {
	router := chi.NewRouter()

	if metricMiddleware != nil {
		router.Use(metricMiddleware.Handler)
	}
	router.Use(
		cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Service.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "HEAD", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestid.HeaderName},
			ExposedHeaders:   []string{"Content-Disposition", requestid.HeaderName},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middleware.RequestID,
		middleware.Logger(),
		chiMiddleware.Recoverer,
	)

	router.Get("/health", s.health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticator.Authenticator)
		s.handler.Routes(r)
	})

	return router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.pinger.Ping(ctx); err != nil {
		zap.S().Named("api_server").Warnw("health check failed", "error", err)
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, api.HealthReply{Status: "unavailable"})
		return
	}
	render.JSON(w, r, api.HealthReply{Status: "ok"})
}

func (s *Server) Run(ctx context.Context) error {
	zap.S().Named("api_server").Info("Initializing API server")

	metricMiddleware := metrics.NewMiddleware("api_server")
	metricMiddleware.MustRegister(nil)

	srv := http.Server{Addr: s.cfg.Service.Address, Handler: s.Router(metricMiddleware)}

	go func() {
		<-ctx.Done()
		zap.S().Named("api_server").Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		zap.S().Named("api_server").Info("api server terminated")
	}()

	zap.S().Named("api_server").Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
