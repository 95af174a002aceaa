// Command soulserver exposes the Soul Engine and Flux Runtime over HTTP
// and WebSocket, the external-collaborator front door spec.md §1 keeps
// out of the core packages.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/soulcore/mediator/internal/audit"
	"github.com/soulcore/mediator/internal/events"
	"github.com/soulcore/mediator/internal/flux"
	"github.com/soulcore/mediator/internal/soul"
	"github.com/soulcore/mediator/internal/storage/sqliteaudit"
)

type serverConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

func defaultServerConfig() serverConfig {
	return serverConfig{Host: "0.0.0.0", Port: 8080, ShutdownTimeout: 10 * time.Second}
}

func main() {
	host := flag.String("host", defaultServerConfig().Host, "HTTP server host")
	port := flag.Int("port", defaultServerConfig().Port, "HTTP server port")
	auditDB := flag.String("audit-db", "", "path to a sqlite database for durable audit storage (empty = in-memory only)")
	flag.Parse()

	cfg := defaultServerConfig()
	cfg.Host = *host
	cfg.Port = *port

	var auditStore audit.Store
	if *auditDB != "" {
		store, err := sqliteaudit.Open(sqliteaudit.Config{Path: *auditDB})
		if err != nil {
			fmt.Fprintf(os.Stderr, "soulserver: failed to open audit db %q: %v\n", *auditDB, err)
			os.Exit(1)
		}
		defer store.Close()
		auditStore = store
	}

	auditLog := audit.New(1000, auditStore)
	engine := soul.NewEngine(nil, auditLog)
	runtime := flux.New(engine, flux.DefaultConfig())

	source := &manualSource{ch: make(chan events.Event, 64)}
	if err := runtime.Start(context.Background(), source); err != nil {
		fmt.Fprintf(os.Stderr, "soulserver: failed to start flux runtime: %v\n", err)
		os.Exit(1)
	}

	router := newRouter(runtime, engine, auditLog)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: router,
	}

	go func() {
		log.Printf("[soulserver] listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[soulserver] listen error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("[soulserver] received signal %v, shutting down", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[soulserver] shutdown error: %v", err)
	}
	runtime.Stop()
}

// manualSource never produces ambient events on its own; the HTTP/WS
// handlers drive the runtime exclusively through Invoke, so its
// processing loop only ever drains the perturbation queue.
type manualSource struct {
	ch chan events.Event
}

func (s *manualSource) Next(ctx context.Context) (events.Event, bool, error) {
	select {
	case e, ok := <-s.ch:
		return e, ok, nil
	case <-ctx.Done():
		return events.Event{}, false, nil
	}
}

func newRouter(runtime *flux.Runtime, engine *soul.Engine, auditLog *audit.Log) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "flux_state": runtime.State()})
	})

	router.GET("/api/v1/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, engine.ManifestBrief())
	})

	router.POST("/api/v1/dialogue", func(c *gin.Context) {
		var req struct {
			Message string `json:"message"`
			Mode    string `json:"mode"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		payload := events.Payload{"message": req.Message}
		if req.Mode != "" {
			payload["mode"] = req.Mode
		}
		out, err := runtime.Invoke(c.Request.Context(), events.New(events.KindDialogueTurn, payload, ""))
		if err != nil {
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, out)
	})

	router.POST("/api/v1/intercept", func(c *gin.Context) {
		var req struct {
			TokenID  string `json:"token_id"`
			Prompt   string `json:"prompt"`
			Reason   string `json:"reason"`
			Severity string `json:"severity"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		payload := events.Payload{
			"token_id": req.TokenID,
			"prompt":   req.Prompt,
			"reason":   req.Reason,
			"severity": req.Severity,
		}
		out, err := runtime.Invoke(c.Request.Context(), events.New(events.KindInterceptRequest, payload, ""))
		if err != nil {
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, out)
	})

	router.GET("/api/v1/audit/summary", func(c *gin.Context) {
		c.JSON(http.StatusOK, auditLog.Summary())
	})

	router.GET("/ws/events", func(c *gin.Context) {
		serveEventStream(c, runtime)
	})

	return router
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// serveEventStream upgrades the connection and relays every Flux output
// event to the client until either side closes, mirroring the teacher's
// own gorilla/websocket use for live event delivery.
func serveEventStream(c *gin.Context, runtime *flux.Runtime) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[soulserver] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for e := range runtime.Output() {
		if err := conn.WriteJSON(e); err != nil {
			return
		}
	}
}
