// Package api is the main api web server
package api

import (
	"context"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/r3labs/sse/v2"
	"github.com/rs/cors"

	"github.com/tranvh2/marquee/api/models"
	"github.com/tranvh2/marquee/config"
	"github.com/tranvh2/marquee/gateway"
	"github.com/tranvh2/marquee/media"
	"github.com/tranvh2/marquee/rotation"
	"github.com/tranvh2/marquee/store"
)

//go:embed web/templates/* web/static/**
var webFiles embed.FS

// DisplayController is the slice of the wlr-randr wrapper the api
// needs: read and set the output power state.
type DisplayController interface {
	Enabled() (bool, error)
	SetEnabled(enabled bool) error
}

// MediaOpener streams announcement assets from the object store.
type MediaOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, string, int64, error)
}

// Server wires the rotation engine to its HTTP surface: the display
// page, the SSE frame stream, navigation, media, and the operational
// endpoints.
type Server struct {
	router *gin.Engine
	cfg    *config.Config
	db     *store.Database

	instanceID string
	startedAt  time.Time

	events    *sse.Server
	surface   *sseSurface
	scheduler *rotation.Scheduler
	jobs      *gocron.Scheduler

	refreshManager  *RefreshManager
	scheduleManager *ScheduleManager

	mediaStore MediaOpener
	spool      *media.Spool
	ctrl       DisplayController

	stopOnce sync.Once
}

// NewServer assembles the server and its managers. mediaStore and
// spool may be nil when no object store is configured; media requests
// then answer 404 and announcement media must be absolute URLs.
func NewServer(cfg *config.Config, db *store.Database, gw *gateway.Client, mediaStore MediaOpener, spool *media.Spool, ctrl DisplayController) *Server {
	router := gin.Default()

	events := sse.New()
	events.AutoReplay = false
	events.CreateStream(frameStream)

	surface := newSSESurface(events, spool)
	scheduler := rotation.NewScheduler(surface)

	// the initial fetch runs inline in Start; jobs wait out their
	// first interval instead of firing immediately
	jobs := gocron.NewScheduler(time.UTC)
	jobs.WaitForScheduleAll()

	s := &Server{
		router:     router,
		cfg:        cfg,
		db:         db,
		instanceID: uuid.NewString(),
		startedAt:  time.Now(),
		events:     events,
		surface:    surface,
		scheduler:  scheduler,
		jobs:       jobs,
		mediaStore: mediaStore,
		spool:      spool,
		ctrl:       ctrl,
	}

	s.refreshManager = NewRefreshManager(gw, db, scheduler, jobs)

	scheduleManager, err := NewScheduleManager(db, ctrl, jobs)
	if err != nil {
		log.Fatalf("Failed to initialize schedule manager: %v", err)
	}
	s.scheduleManager = scheduleManager

	// Setup routes
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	// Create filesystem for static files (strip "web/" prefix)
	staticFS, err := fs.Sub(webFiles, "web/static")
	if err != nil {
		log.Fatalf("Failed to create static filesystem: %v", err)
	}

	// Create filesystem for templates
	templatesFS, err := fs.Sub(webFiles, "web/templates")
	if err != nil {
		log.Fatalf("Failed to create templates filesystem: %v", err)
	}

	// Serve static files from embedded filesystem
	s.router.StaticFS("static", http.FS(staticFS))

	// Serve favicon
	s.router.GET("/favicon.ico", s.handleFavicon)
	s.router.GET("/favicon.svg", s.handleFavicon)

	// Serve the display page from embedded filesystem
	s.router.GET("/", func(c *gin.Context) {
		data, err := fs.ReadFile(templatesFS, "index.html")
		if err != nil {
			slog.Error("failed to read index.html", "error", err)
			c.String(http.StatusInternalServerError, "Failed to load index.html")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", data)
	})

	// Frame delivery
	s.router.GET("/events", gin.WrapH(s.events))
	s.router.GET("/frame", s.handleFrame)

	// Manual navigation, the only index mutators exposed
	s.router.POST("/display/next", s.handleNext)
	s.router.POST("/display/prev", s.handlePrev)
	s.router.POST("/display/select/:index", s.handleSelect)

	// Announcement media
	s.router.GET("/media/*key", s.handleMedia)

	// Display output power control
	s.router.GET("/display", s.handleGetDisplay)
	s.router.PUT("/display/:state", s.handleUpdateDisplay)

	// Operational endpoints
	s.router.GET("/status", s.handleStatus)
	s.router.GET("/healthz", s.handleHealthz)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Handler wraps the router with the CORS policy; this is what the
// HTTP listener should serve.
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: s.cfg.Origins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept"},
	}).Handler(s.router)
}

// Start brings up the background machinery: frame delivery, the
// initial fetch, and the recurring jobs. The HTTP listener itself is
// owned by the caller.
func (s *Server) Start() error {
	go s.surface.run()

	if err := s.refreshManager.Start(); err != nil {
		return err
	}
	if err := s.scheduleManager.Start(); err != nil {
		return err
	}
	s.jobs.StartAsync()

	slog.Info("api server started", "instance_id", s.instanceID)
	return nil
}

// Stop tears the background machinery down: jobs first so nothing
// publishes into a closed stream, then the rotation timer, then frame
// delivery and the SSE server, which ends the open event connections
// so the HTTP listener can drain.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.jobs.Stop()
		s.scheduler.Stop()
		s.surface.shutdown()
		s.events.Close()
		slog.Info("api server stopped", "instance_id", s.instanceID)
	})
}

func (s *Server) handleFavicon(c *gin.Context) {
	data, err := webFiles.ReadFile("web/static/images/favicon.svg")
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, "image/svg+xml", data)
}

// handleFrame returns the latest frame so the display page can paint
// before its first SSE event arrives.
func (s *Server) handleFrame(c *gin.Context) {
	c.JSON(http.StatusOK, s.surface.LastFrame())
}

func (s *Server) handleNext(c *gin.Context) {
	s.navigate(c, s.scheduler.Next)
}

func (s *Server) handlePrev(c *gin.Context) {
	s.navigate(c, s.scheduler.Prev)
}

func (s *Server) navigate(c *gin.Context, move func() (rotation.Snapshot, bool)) {
	snap, ok := move()
	if !ok {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error: fmt.Sprintf("navigation requires a cycling rotation, state is %s", snap.State),
		})
		return
	}
	c.JSON(http.StatusOK, models.NavigationResponse{
		State:   snap.State,
		Current: snap.Current,
		Count:   snap.Count,
	})
}

func (s *Server) handleSelect(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "index must be an integer"})
		return
	}

	snap, ok := s.scheduler.Select(index)
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: fmt.Sprintf("index %d out of range for %d items", index, snap.Count),
		})
		return
	}
	c.JSON(http.StatusOK, models.NavigationResponse{
		State:   snap.State,
		Current: snap.Current,
		Count:   snap.Count,
	})
}

// handleMedia serves an announcement asset: from the spool when the
// preload window already materialized it, falling back to a straight
// object-store read otherwise.
func (s *Server) handleMedia(c *gin.Context) {
	raw := strings.TrimPrefix(c.Param("key"), "/")
	key, ok := media.StorageKey(raw)
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid media key"})
		return
	}

	if s.spool != nil {
		if name, ok := s.spool.Path(key); ok {
			c.File(name)
			return
		}
	}

	if s.mediaStore == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "no media backend configured"})
		return
	}

	body, contentType, length, err := s.mediaStore.Open(c.Request.Context(), key)
	if err != nil {
		slog.Debug("unable to open media object", "key", key, "error", err)
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: fmt.Sprintf("media not found: %s", key)})
		return
	}
	defer body.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, length, contentType, body, nil)
}

func (s *Server) handleGetDisplay(c *gin.Context) {
	enabled, err := s.ctrl.Enabled()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Failed to get display state: %v", err)})
		return
	}

	c.JSON(http.StatusOK, models.DisplayStateResponse{Enabled: enabled})
}

func (s *Server) handleUpdateDisplay(c *gin.Context) {
	state := c.Param("state")
	if state != "0" && state != "1" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "state must be 0 (off) or 1 (on)"})
		return
	}

	desiredEnabled := state == "1"
	if err := s.ctrl.SetEnabled(desiredEnabled); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Failed to update display state: %v", err)})
		return
	}

	// Re-read state to reflect actual output if possible.
	enabled, err := s.ctrl.Enabled()
	if err != nil {
		slog.Warn("failed to re-read display state after update", "error", err)
		enabled = desiredEnabled
	}

	c.JSON(http.StatusOK, models.DisplayStateResponse{Enabled: enabled})
}

func (s *Server) handleStatus(c *gin.Context) {
	snap := s.scheduler.Snapshot()
	interval, lastRefresh, nextRefresh := s.refreshManager.Status()

	c.JSON(http.StatusOK, models.StatusResponse{
		InstanceID:             s.instanceID,
		State:                  snap.State,
		Current:                snap.Current,
		Count:                  snap.Count,
		CurrentID:              snap.CurrentID,
		RefreshIntervalMinutes: interval,
		LastRefresh:            lastRefresh,
		NextRefresh:            nextRefresh,
		UptimeSeconds:          int64(time.Since(s.startedAt).Seconds()),
		WakefulEnabled:         s.cfg.Wakeful.Enabled,
	})
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
