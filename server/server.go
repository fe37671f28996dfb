package server

import (
	"bufio"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"feedreader/feeds"
	"feedreader/models"
	"feedreader/widget"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

//go:embed dist/*
var dist embed.FS

const (
	DefaultPingInterval = 5 * time.Second
	DefaultWaitTimeout  = 35 * time.Second
)

type ServerConfig struct {
	// The widget engine the routes drive
	Engine *widget.Engine

	// Broadcast channels to pass render events to SSE clients
	Broadcaster *Broadcaster

	// Origins allowed to call the api from a browser
	AllowOrigins string

	// Interval between keep-alive pings on the event stream
	PingInterval time.Duration

	// Upper bound for ?wait=true load requests
	WaitTimeout time.Duration
}

// Returns a fiber.App whose routes are thin adapters over the widget engine
func Server(config *ServerConfig) *fiber.App {
	if config.PingInterval <= 0 {
		config.PingInterval = DefaultPingInterval
	}
	if config.WaitTimeout <= 0 {
		config.WaitTimeout = DefaultWaitTimeout
	}
	if config.AllowOrigins == "" {
		config.AllowOrigins = "http://localhost:3001"
	}

	engine := config.Engine
	bc := config.Broadcaster

	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	// a panicking handler answers 500 instead of taking the widget down
	app.Use(recover.New())
	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New(compress.Config{
		// compressing would buffer the event stream
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/api/events"
		},
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     config.AllowOrigins,
		AllowHeaders:     "Cache-Control",
		AllowCredentials: true,
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	api.Get("/state", func(c *fiber.Ctx) error {
		return c.JSON(engine.State())
	})

	api.Get("/feeds", func(c *fiber.Ctx) error {
		return c.JSON(engine.Feeds())
	})

	api.Get("/feeds/:index", func(c *fiber.Ctx) error {
		index, err := paramIndex(c, "index")
		if err != nil {
			return err
		}
		feed, err := engine.Feed(index)
		if err != nil {
			return err
		}
		return c.JSON(feed)
	})

	api.Post("/feeds/:index/load", func(c *fiber.Ctx) error {
		index, err := paramIndex(c, "index")
		if err != nil {
			return err
		}
		load, err := engine.LoadFeed(index, nil)
		return respondLoad(c, config.WaitTimeout, load, err)
	})

	api.Post("/next", func(c *fiber.Ctx) error {
		load, err := engine.LoadNextFeed(nil)
		return respondLoad(c, config.WaitTimeout, load, err)
	})

	api.Post("/previous", func(c *fiber.Ctx) error {
		load, err := engine.LoadPreviousFeed(nil)
		return respondLoad(c, config.WaitTimeout, load, err)
	})

	api.Post("/refresh", func(c *fiber.Ctx) error {
		load, err := engine.Reload(nil)
		return respondLoad(c, config.WaitTimeout, load, err)
	})

	api.Post("/feeds/:index/entries/:entry/read", func(c *fiber.Ctx) error {
		index, err := paramIndex(c, "index")
		if err != nil {
			return err
		}
		entry, err := paramIndex(c, "entry")
		if err != nil {
			return err
		}
		marked, err := engine.MarkRead(index, entry)
		if err != nil {
			return err
		}
		return c.JSON(marked)
	})

	api.Get("/favorites", func(c *fiber.Ctx) error {
		return c.JSON(engine.Favorites())
	})

	// registered before /favorites/:index so "current" is not parsed as an index
	api.Post("/favorites/current", func(c *fiber.Ctx) error {
		if err := engine.AddCurrentAsFavorite(); err != nil {
			return err
		}
		return c.JSON(engine.Favorites())
	})

	api.Post("/favorites/:index", func(c *fiber.Ctx) error {
		index, err := paramIndex(c, "index")
		if err != nil {
			return err
		}
		if err := engine.AddFavorite(index); err != nil {
			return err
		}
		return c.JSON(engine.Favorites())
	})

	api.Delete("/favorites/:index", func(c *fiber.Ctx) error {
		index, err := paramIndex(c, "index")
		if err != nil {
			return err
		}
		if err := engine.RemoveFavorite(index); err != nil {
			return err
		}
		return c.JSON(engine.Favorites())
	})

	api.Post("/menu/toggle", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"menuHidden": engine.Menu().Toggle()})
	})

	api.Get("/events", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("Transfer-Encoding", "chunked")

		// Unique client key
		key := uuid.New().String()
		events := make(chan Event, 10)
		bc.AddClient(key, events)

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer bc.RemoveClient(key)
			stream(w, key, events, config.PingInterval)
		}))
		return nil
	})

	// Serve the widget page
	app.Use("/", filesystem.New(filesystem.Config{
		Browse:     false,
		Index:      "index.html",
		Root:       http.FS(dist),
		PathPrefix: "/dist",
	}))

	return app
}

// stream writes events to one SSE client until its channel closes or a write fails
func stream(w *bufio.Writer, key string, events <-chan Event, pingInterval time.Duration) {
	alive := time.NewTicker(pingInterval)
	defer alive.Stop()

	if err := writeEvent(w, "init", key); err != nil {
		log.Errorf("Failed to send init event: %v", err)
		return
	}

	for {
		select {
		case <-alive.C:
			if err := writeEvent(w, "ping", ""); err != nil {
				log.Warnf("Failed to send ping to client %s: %v", key, err)
				return
			}

		case event, ok := <-events:
			if !ok {
				log.Debugf("Event channel closed for client %s", key)
				return
			}
			data, err := json.Marshal(event.Data)
			if err != nil {
				log.Errorf("Error marshalling %s for client %s: %v", event.Name, key, err)
				continue
			}
			if err := writeEvent(w, event.Name, string(data)); err != nil {
				log.Warnf("Failed to send %s event to client %s: %v", event.Name, key, err)
				return
			}
		}
	}
}

func writeEvent(w *bufio.Writer, name, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return w.Flush()
}

// respondLoad reports a started load, or its outcome when the caller asked to wait
func respondLoad(c *fiber.Ctx, timeout time.Duration, load *feeds.Load, err error) error {
	if err != nil {
		return err
	}

	resp := models.LoadResponse{Index: load.Index(), Status: "loading"}
	if !c.QueryBool("wait") {
		return c.Status(fiber.StatusAccepted).JSON(resp)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
	defer cancel()

	if err := load.Wait(ctx); err != nil {
		resp.Status = "failed"
		resp.Error = err.Error()
		return c.Status(statusOf(err)).JSON(resp)
	}
	resp.Status = "loaded"
	return c.JSON(resp)
}

func paramIndex(c *fiber.Ctx, name string) (int, error) {
	index, err := c.ParamsInt(name)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid %s %q", name, c.Params(name)))
	}
	return index, nil
}

func statusOf(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, feeds.ErrIndexOutOfRange),
		errors.Is(err, feeds.ErrStatusRegression),
		errors.Is(err, feeds.ErrInvalidStatus):
		return fiber.StatusBadRequest
	case errors.Is(err, feeds.ErrSuperseded):
		return fiber.StatusConflict
	case errors.Is(err, feeds.ErrFetch):
		return fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := statusOf(err)
	if code >= fiber.StatusInternalServerError {
		log.WithFields(log.Fields{
			"path":  c.Path(),
			"error": err,
		}).Error("Request failed")
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
