package server

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/hupe1980/travelmesh/logging"
	"github.com/hupe1980/travelmesh/travel"
)

// Options configures a Server.
type Options struct {
	// AllowedOrigins feeds the CORS middleware. "*" allows every origin;
	// an empty list disables CORS handling.
	AllowedOrigins []string
	// Logger receives one line per request. Defaults to the app logger.
	Logger logging.Logger
	// ShutdownTimeout bounds the graceful shutdown in ListenAndServe.
	ShutdownTimeout time.Duration
}

// Server is the HTTP front of a travel.App.
type Server struct {
	app    *travel.App
	opts   Options
	router *gin.Engine
}

// New builds the router for app.
func New(app *travel.App, optFns ...func(o *Options)) *Server {
	opts := Options{
		AllowedOrigins:  app.Config.AllowedOrigins,
		Logger:          app.Logger,
		ShutdownTimeout: 10 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	router := gin.New()
	router.Use(gin.Recovery())

	if len(opts.AllowedOrigins) > 0 {
		corsCfg := cors.Config{
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
			MaxAge:        12 * time.Hour,
		}
		if slices.Contains(opts.AllowedOrigins, "*") {
			corsCfg.AllowAllOrigins = true
		} else {
			corsCfg.AllowOrigins = opts.AllowedOrigins
		}
		router.Use(cors.New(corsCfg))
	}

	router.Use(requestLogger(opts.Logger))

	s := &Server{app: app, opts: opts, router: router}
	s.routes()

	return s
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.health)

	v1 := s.router.Group("/v1")
	{
		v1.POST("/sessions", s.createSession)
		v1.GET("/sessions/:id", s.getSession)
		v1.GET("/sessions/:id/state", s.getState)
		v1.POST("/sessions/:id/messages", s.postMessage)
		v1.GET("/sessions/:id/export", s.export)
		v1.GET("/sessions/:id/artifacts/:name", s.getArtifact)
	}
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("server.listen", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	s.opts.Logger.Info("server.shutdown", "addr", addr)

	return srv.Shutdown(shutdownCtx)
}
