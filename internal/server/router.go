package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/webprobe/internal/metrics"
	"github.com/loykin/webprobe/internal/scheduler"
)

// Stats is the read-only counter surface the router exposes. The
// supervisor implements it.
type Stats interface {
	Snapshot() map[string]scheduler.Snapshot
	Totals() scheduler.Snapshot
}

// Router exposes the observability surface:
//
//	GET /healthz  liveness
//	GET /status   per-target and aggregate counters as JSON
//	GET /metrics  Prometheus exposition
type Router struct {
	stats Stats
}

func NewRouter(stats Stats) *Router { return &Router{stats: stats} }

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/healthz", r.handleHealthz)
	g.GET("/status", r.handleStatus)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr string, stats Stats) *http.Server {
	r := NewRouter(stats)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

type statusResp struct {
	Targets map[string]scheduler.Snapshot `json:"targets"`
	Total   scheduler.Snapshot            `json:"total"`
}

func (r *Router) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, statusResp{
		Targets: r.stats.Snapshot(),
		Total:   r.stats.Totals(),
	})
}
