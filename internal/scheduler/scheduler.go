package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"BreakoutScanner/internal/model"
	"BreakoutScanner/internal/notifier"
	"BreakoutScanner/internal/recorder"
	"BreakoutScanner/internal/scanner"
	"BreakoutScanner/internal/universe"
)

// Scanner runs scan batches. scanner.Orchestrator implements it.
type Scanner interface {
	Scan(ctx context.Context, req scanner.Request, progress scanner.ProgressFunc) (*model.ScanBatch, error)
}

// Notifier delivers reports. notifier.TelegramNotifier implements it.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Job describes the recurring universe scan.
type Job struct {
	Tickers     []string
	Watchlist   string
	Horizon     string
	Concurrency int
}

// Scheduler manages the cron scan and the chat commands that trigger scans.
type Scheduler struct {
	Cron     *cron.Cron
	Scanner  Scanner
	Notifier Notifier
	Recorder recorder.Recorder
	Job      Job
	Ctx      context.Context

	mu   sync.Mutex
	last *model.ScanBatch
}

// NewScheduler creates a new Scheduler. Notifier may be nil when alerts are disabled.
func NewScheduler(ctx context.Context, sc Scanner, n Notifier, rec recorder.Recorder, job Job) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Scanner:  sc,
		Notifier: n,
		Recorder: rec,
		Job:      job,
		Ctx:      ctx,
	}
}

// Register adds the scheduled universe scan.
func (s *Scheduler) Register(scanCron string) error {
	if _, err := s.Cron.AddFunc(scanCron, s.scheduledScan); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// Last returns the most recent batch run through the scheduler.
func (s *Scheduler) Last() *model.ScanBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) scheduledScan() {
	log.Info().Msg("running scheduled scan")
	batch, err := s.RunScan(s.Ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("scheduled scan")
		s.trySend(fmt.Sprintf("❌ Scheduled scan failed: %v", err))
		return
	}
	s.trySend(notifier.FormatScanReport(batch))
}

// RunScan scans tickers, or the configured universe when tickers is empty, then
// records the batch. A cancelled batch is neither recorded nor kept.
func (s *Scheduler) RunScan(ctx context.Context, tickers []string) (*model.ScanBatch, error) {
	if len(tickers) == 0 {
		var err error
		tickers, err = universe.Resolve(s.Job.Tickers, s.Job.Watchlist)
		if err != nil {
			return nil, err
		}
	}
	batch, err := s.Scanner.Scan(ctx, scanner.Request{
		Tickers:     tickers,
		Horizon:     s.Job.Horizon,
		Concurrency: s.Job.Concurrency,
	}, nil)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.last = batch
	s.mu.Unlock()

	if err := s.Recorder.RecordBatch(ctx, batch); err != nil {
		log.Error().Err(err).Str("batch", batch.ID).Msg("record batch")
	}
	return batch, nil
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	// Telegram appends @botname to commands in groups.
	cmd := strings.SplitN(fields[0], "@", 2)[0]
	args := strings.Join(fields[1:], " ")

	switch cmd {
	case "/scan":
		batch, err := s.RunScan(ctx, universe.Split(args))
		if err != nil {
			var me *model.Error
			if errors.As(err, &me) {
				return fmt.Sprintf("❌ %s", me.Reason)
			}
			return fmt.Sprintf("❌ scan failed: %v", err)
		}
		return notifier.FormatScanReport(batch)
	case "/top":
		n := 5
		if args != "" {
			if v, err := strconv.Atoi(args); err == nil && v > 0 {
				n = v
			}
		}
		return notifier.FormatTop(s.Last(), n)
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Error().Err(err).Msg("send notification")
	}
}
