package dashboard

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"trustclaw/config"
	"trustclaw/internal/metrics"
	"trustclaw/internal/scheduler"
	"trustclaw/logger"
	"trustclaw/models"
)

// TaskStatusProvider reports per-task scheduler state.
type TaskStatusProvider interface {
	Status() []scheduler.JobStatus
}

// RecentProvider exposes the findings buffer read by the market brief.
type RecentProvider interface {
	Snapshot() []models.Finding
	Dropped() int64
}

type Sources struct {
	Tasks  TaskStatusProvider
	Recent RecentProvider
}

// Server hosts the read-only status API for TrustClaw.
type Server struct {
	cfg             config.DashboardConfig
	log             *logger.Log
	sources         Sources
	metricStore     *metricStore
	logStore        *logStore
	metricHandler   metrics.MetricHandlerID
	httpServer      *http.Server
	resourceSampler *resourceSampler
	started         time.Time
}

// NewServer returns nil when the dashboard is disabled.
func NewServer(cfg config.DashboardConfig, log *logger.Log, sources Sources) (*Server, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	cfg.Address = normalizeAddress(cfg.Address)

	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 5 * time.Second
	}
	if cfg.LogHistory <= 0 {
		cfg.LogHistory = 200
	}
	if cfg.MetricsHistory <= 0 {
		cfg.MetricsHistory = 200
	}

	metricStore := newMetricStore(cfg.MetricsHistory)
	handlerID := metrics.RegisterMetricHandler(metricStore.handle)

	logStore := newLogStore(cfg.LogHistory)
	log.AddHook(logStore)

	return &Server{
		cfg:             cfg,
		log:             log,
		sources:         sources,
		metricStore:     metricStore,
		logStore:        logStore,
		metricHandler:   handlerID,
		resourceSampler: newResourceSampler(cfg.MetricsHistory, cfg.SampleInterval, "/", log),
		started:         time.Now(),
	}, nil
}

// Run serves until ctx is cancelled, then shuts the listener down.
func (s *Server) Run(ctx context.Context, appName string) error {
	if s == nil {
		return nil
	}

	defer s.cleanup()

	router, err := s.buildRouter(appName)
	if err != nil {
		return err
	}

	if s.resourceSampler != nil {
		s.resourceSampler.start(ctx)
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.log.WithComponent("dashboard").WithField("address", s.cfg.Address).Info("dashboard listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) cleanup() {
	metrics.UnregisterMetricHandler(s.metricHandler)
	if s.logStore != nil {
		s.logStore.close()
	}
	if s.resourceSampler != nil {
		s.resourceSampler.stop()
	}
}

func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

func (s *Server) buildRouter(appName string) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"app": appName,
			"endpoints": []string{
				"/healthz", "/api/tasks", "/api/recent", "/api/logs",
				"/api/metrics", "/api/resources", "/metrics",
			},
		})
	})

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"app":    appName,
			"uptime": time.Since(s.started).Round(time.Second).String(),
		})
	})

	router.GET("/api/tasks", func(c *gin.Context) {
		if s.sources.Tasks == nil {
			c.JSON(http.StatusOK, gin.H{"tasks": []scheduler.JobStatus{}})
			return
		}
		statuses := s.sources.Tasks.Status()
		payload := make([]gin.H, 0, len(statuses))
		for _, st := range statuses {
			item := gin.H{
				"name":             st.Name,
				"interval_seconds": st.Interval.Seconds(),
				"running":          st.Running,
				"runs":             st.Runs,
				"skipped":          st.Skipped,
				"failures":         st.Failures,
				"last_run_id":      st.LastRunID,
				"last_duration_ms": st.LastDuration.Milliseconds(),
				"last_error":       st.LastError,
			}
			if !st.LastStart.IsZero() {
				item["last_start"] = st.LastStart.Format(time.RFC3339Nano)
			}
			payload = append(payload, item)
		}
		c.JSON(http.StatusOK, gin.H{"tasks": payload})
	})

	router.GET("/api/recent", func(c *gin.Context) {
		if s.sources.Recent == nil {
			c.JSON(http.StatusOK, gin.H{"findings": []models.Finding{}, "dropped": 0})
			return
		}
		findings := s.sources.Recent.Snapshot()
		if raw := c.Query("kind"); raw != "" {
			filtered := findings[:0:0]
			for _, f := range findings {
				if string(f.Kind) == raw {
					filtered = append(filtered, f)
				}
			}
			findings = filtered
		}
		if n, err := strconv.Atoi(c.Query("limit")); err == nil && n >= 0 && n < len(findings) {
			findings = findings[len(findings)-n:]
		}
		c.JSON(http.StatusOK, gin.H{
			"findings": findings,
			"count":    len(findings),
			"dropped":  s.sources.Recent.Dropped(),
		})
	})

	router.GET("/api/metrics", func(c *gin.Context) {
		metricsSnapshot := s.metricStore.snapshot()
		payload := make([]gin.H, 0, len(metricsSnapshot))
		for _, m := range metricsSnapshot {
			payload = append(payload, gin.H{
				"timestamp": m.Timestamp.Format(time.RFC3339Nano),
				"component": m.Component,
				"name":      m.Name,
				"value":     m.Value,
				"type":      m.Type,
				"fields":    m.Fields,
			})
		}
		c.JSON(http.StatusOK, gin.H{"metrics": payload})
	})

	router.GET("/api/logs", func(c *gin.Context) {
		logsSnapshot := s.logStore.snapshot()
		level := strings.ToLower(c.Query("level"))
		payload := make([]gin.H, 0, len(logsSnapshot))
		for _, l := range logsSnapshot {
			if level != "" && l.Level != level {
				continue
			}
			payload = append(payload, gin.H{
				"timestamp": l.Timestamp.Format(time.RFC3339Nano),
				"level":     l.Level,
				"component": l.Component,
				"message":   l.Message,
				"fields":    l.Fields,
			})
		}
		c.JSON(http.StatusOK, gin.H{"logs": payload})
	})

	router.GET("/api/resources", func(c *gin.Context) {
		snapshots := s.resourceSampler.snapshot()
		payload := make([]gin.H, 0, len(snapshots))
		for _, snap := range snapshots {
			payload = append(payload, gin.H{
				"timestamp":      snap.Timestamp.Format(time.RFC3339Nano),
				"cpu_percent":    snap.CPUPercent,
				"memory_used":    snap.MemoryUsed,
				"memory_total":   snap.MemoryTotal,
				"memory_percent": snap.MemoryPct,
				"disk_used":      snap.DiskUsed,
				"disk_total":     snap.DiskTotal,
				"disk_percent":   snap.DiskPct,
				"process_rss":    snap.ProcessRSS,
				"goroutines":     snap.Goroutines,
			})
		}
		c.JSON(http.StatusOK, gin.H{"resources": payload})
	})

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return router, nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:8080"
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil {
			if host := parsed.Host; host != "" {
				addr = host
			} else if parsed.Opaque != "" {
				addr = parsed.Opaque
			}
		}
	}

	if strings.HasPrefix(addr, ":") {
		if len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
			return "0.0.0.0" + addr
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = "8080"
		}
		return net.JoinHostPort(host, port)
	}

	if ip := net.ParseIP(addr); ip != nil {
		return net.JoinHostPort(addr, "8080")
	}

	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, "8080")
	}

	return addr
}
