// Package web serves the facesense HTTP and WebSocket API: landmark ticks
// come in, metrics, counters and events go out.
package web

import (
	"context"
	"errors"
	"net"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"github.com/teslashibe/go-facesense/internal/log"
	"github.com/teslashibe/go-facesense/pkg/hub"
	"github.com/teslashibe/go-facesense/pkg/pipeline"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config holds server settings.
type Config struct {
	Port string

	// StatusRate caps status broadcasts per second. Results beyond the
	// cap are not broadcast; /api/status always has the latest.
	StatusRate float64
}

// Server is the facesense API server
type Server struct {
	app       *fiber.App
	cfg       Config
	processor *pipeline.Processor
	validate  *validator.Validate

	// Hub for websocket status broadcast
	statusHub *hub.Hub
	limiter   *rate.Limiter
}

// NewServer creates the server and registers it as a sink on p so every
// processed tick reaches /ws/status subscribers.
func NewServer(cfg Config, p *pipeline.Processor) *Server {
	if cfg.StatusRate <= 0 {
		cfg.StatusRate = 15
	}

	s := &Server{
		cfg:       cfg,
		processor: p,
		validate:  validator.New(),
		statusHub: hub.New("status"),
		limiter:   rate.NewLimiter(rate.Limit(cfg.StatusRate), 1),
	}

	app := fiber.New(fiber.Config{
		AppName:               "facesense",
		DisableStartupMessage: true,
		BodyLimit:             4 * 1024 * 1024,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	// CORS for browser renderers
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Post("/frames", s.handleFrames)
	api.Get("/status", s.handleStatus)
	api.Get("/subjects", s.handleListSubjects)
	api.Get("/subjects/:id", s.handleGetSubject)
	api.Delete("/subjects/:id", s.handleDeleteSubject)
	api.Get("/groups", s.handleGroups)
	api.Get("/thresholds", s.handleThresholds)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/ingest", websocket.New(s.handleIngestWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	p.AddSink(pipeline.SinkFunc(s.publishStatus))
	return s
}

// Run serves on the configured port until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.cfg.Port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.statusHub.Run(ctx)

	errc := make(chan error, 1)
	go func() {
		log.Info("api listening", "addr", ln.Addr().String())
		errc <- s.app.Listener(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		if err := s.app.Shutdown(); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	}
}

// StatusHub returns the status hub for external use
func (s *Server) StatusHub() *hub.Hub {
	return s.statusHub
}

// publishStatus forwards a result to status subscribers, throttled.
func (s *Server) publishStatus(_ context.Context, r pipeline.Result) error {
	if !s.limiter.Allow() {
		return nil
	}
	return s.statusHub.BroadcastJSON(r)
}
