// Package api exposes scans over HTTP: asynchronous scan jobs, websocket progress,
// exports, charts, history, health and metrics.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"BreakoutScanner/internal/chart"
	"BreakoutScanner/internal/export"
	"BreakoutScanner/internal/model"
	"BreakoutScanner/internal/recorder"
	"BreakoutScanner/internal/scanner"
	"BreakoutScanner/internal/universe"
)

// Scanner runs scan batches. scanner.Orchestrator implements it.
type Scanner interface {
	Scan(ctx context.Context, req scanner.Request, progress scanner.ProgressFunc) (*model.ScanBatch, error)
	Horizons() []string
	DefaultHorizon() string
}

// SeriesSource fetches price history for charts. collector.Session implements it.
type SeriesSource interface {
	Fetch(ctx context.Context, ticker string, window int) (*model.PriceSeries, error)
}

// Options wires the server's collaborators.
type Options struct {
	Scanner     Scanner
	Charts      func() SeriesSource
	Recorder    recorder.Recorder
	Metrics     http.Handler
	CORSOrigins []string
	KeepScans   int
	ScanTimeout time.Duration
	Concurrency int
	ChartWindow int
}

// Server is the HTTP front end.
type Server struct {
	opts   Options
	engine *gin.Engine
	jobs   *jobStore
	ctx    context.Context
	stop   context.CancelFunc
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewServer builds the router.
func NewServer(opts Options) *Server {
	if opts.Recorder == nil {
		opts.Recorder = recorder.NewNoopRecorder()
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = 5 * time.Minute
	}
	if opts.ChartWindow <= 0 {
		opts.ChartWindow = 63
	}
	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		opts: opts,
		jobs: newJobStore(opts.KeepScans),
		ctx:  ctx,
		stop: stop,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	corsCfg := cors.DefaultConfig()
	if len(opts.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = opts.CORSOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", s.health)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/horizons", s.horizons)
		v1.POST("/scans", s.createScan)
		v1.GET("/scans", s.listScans)
		v1.GET("/scans/:id", s.getScan)
		v1.DELETE("/scans/:id", s.cancelScan)
		v1.GET("/scans/:id/progress", s.streamProgress)
		v1.GET("/scans/:id/export", s.exportScan)
		v1.GET("/history", s.history)
		v1.GET("/history/:id", s.historyResults)
		v1.GET("/chart/:ticker", s.chart)
	}
	s.engine = r
	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then shuts down and cancels running scans.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.stop()
	s.jobs.cancelAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info().Msg("http server stopped")
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	}
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch model.KindOf(err) {
	case model.KindInvalidInput:
		return http.StatusBadRequest
	case model.KindDataUnavailable:
		return http.StatusBadGateway
	case model.KindModel:
		return http.StatusServiceUnavailable
	case model.KindFeature, model.KindDecision:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{
		"error_kind": model.KindOf(err),
		"error":      err.Error(),
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "horizons": s.opts.Scanner.Horizons()})
}

func (s *Server) horizons(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"default":  s.opts.Scanner.DefaultHorizon(),
		"horizons": s.opts.Scanner.Horizons(),
	})
}

type scanRequest struct {
	Tickers     []string `json:"tickers"`
	Horizon     string   `json:"horizon"`
	Concurrency int      `json:"concurrency"`
}

func (s *Server) createScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, model.InvalidInput(err.Error()))
		return
	}
	tickers := universe.Normalize(req.Tickers)
	if len(tickers) == 0 {
		abortWithError(c, model.InvalidInput("empty ticker set"))
		return
	}
	if req.Concurrency <= 0 {
		req.Concurrency = s.opts.Concurrency
	}

	id := uuid.NewString()
	ctx, cancel := context.WithTimeout(s.ctx, s.opts.ScanTimeout)
	j := newJob(id, cancel)
	s.jobs.add(j)

	go func() {
		defer cancel()
		batch, err := s.opts.Scanner.Scan(ctx, scanner.Request{
			ID:          id,
			Tickers:     tickers,
			Horizon:     req.Horizon,
			Concurrency: req.Concurrency,
		}, j.setProgress)
		j.finish(batch, err)
		if err == nil {
			if err := s.opts.Recorder.RecordBatch(s.ctx, batch); err != nil {
				log.Error().Err(err).Str("batch", id).Msg("record batch")
			}
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": JobRunning})
}

func (s *Server) listScans(c *gin.Context) {
	c.JSON(http.StatusOK, s.jobs.list())
}

func (s *Server) lookup(c *gin.Context) (*job, bool) {
	j, ok := s.jobs.get(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "scan not found"})
	}
	return j, ok
}

func (s *Server) getScan(c *gin.Context) {
	j, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, j.view(true))
}

func (s *Server) cancelScan(c *gin.Context) {
	j, ok := s.lookup(c)
	if !ok {
		return
	}
	j.cancel()
	c.JSON(http.StatusAccepted, j.view(false))
}

type progressMessage struct {
	Status   JobStatus `json:"status"`
	Progress float64   `json:"progress"`
}

// streamProgress pushes progress updates over a websocket until the job finishes.
func (s *Server) streamProgress(c *gin.Context) {
	j, ok := s.lookup(c)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	last := -1.0
	for {
		v, changed := j.watch()
		if v.Progress != last || v.Status != JobRunning {
			last = v.Progress
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(progressMessage{Status: v.Status, Progress: v.Progress}); err != nil {
				return
			}
		}
		if v.Status != JobRunning {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(v.Status)))
			return
		}
		select {
		case <-changed:
		case <-c.Request.Context().Done():
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Server) exportScan(c *gin.Context) {
	j, ok := s.lookup(c)
	if !ok {
		return
	}
	batch, status := j.result()
	if batch == nil {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "scan has no results", "status": status})
		return
	}

	var buf bytes.Buffer
	switch format := c.DefaultQuery("format", "csv"); format {
	case "csv":
		if err := export.WriteCSV(&buf, batch, true); err != nil {
			abortWithError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="scan_%s.csv"`, batch.ID))
		c.Data(http.StatusOK, "text/csv", buf.Bytes())
	case "xlsx":
		if err := export.WriteXLSX(&buf, batch); err != nil {
			abortWithError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="scan_%s.xlsx"`, batch.ID))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	default:
		abortWithError(c, model.InvalidInput(fmt.Sprintf("unknown export format %q", format)))
	}
}

func (s *Server) history(c *gin.Context) {
	rows, err := s.opts.Recorder.Recent(c.Request.Context(), 20)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if rows == nil {
		rows = []recorder.BatchSummary{}
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) historyResults(c *gin.Context) {
	rows, err := s.opts.Recorder.Results(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if rows == nil {
		rows = []model.ScanResult{}
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) chart(c *gin.Context) {
	if s.opts.Charts == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "charts disabled"})
		return
	}
	tickers := universe.Split(c.Param("ticker"))
	if len(tickers) != 1 {
		abortWithError(c, model.InvalidInput("exactly one ticker is required"))
		return
	}
	series, err := s.opts.Charts().Fetch(c.Request.Context(), tickers[0], s.opts.ChartWindow)
	if err != nil {
		abortWithError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := chart.RenderCloses(&buf, series, chart.Levels{}); err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}
