package collector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"BreakoutScanner/internal/model"
)

// Config controls fetching, validation, throttling and caching.
type Config struct {
	LookbackBars   int           `yaml:"lookback_bars"`
	MinBars        int           `yaml:"min_bars"`
	Interval       string        `yaml:"interval"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
	CacheSize      int           `yaml:"cache_size"`
	Breaker        BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the optional provider circuit breaker.
type BreakerConfig struct {
	Enabled             bool          `yaml:"enabled"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
	Cooldown            time.Duration `yaml:"cooldown"`
}

// DefaultConfig returns a 60-bar lookback, 20-bar minimum and a 15s fetch timeout.
func DefaultConfig() Config {
	return Config{
		LookbackBars:   60,
		MinBars:        20,
		Interval:       "1d",
		FetchTimeout:   15 * time.Second,
		RateLimitRPS:   5,
		RateLimitBurst: 5,
		CacheSize:      512,
		Breaker:        BreakerConfig{ConsecutiveFailures: 5, Cooldown: 30 * time.Second},
	}
}

// Observer receives fetch and cache events. metrics.Registry implements it.
type Observer interface {
	ObserveFetch(provider string, elapsed time.Duration, err error)
	CacheHit()
	CacheMiss()
}

type noopObserver struct{}

func (noopObserver) ObserveFetch(string, time.Duration, error) {}
func (noopObserver) CacheHit()                                 {}
func (noopObserver) CacheMiss()                                {}

// Collector fetches and validates price history from a Fetcher. The limiter and
// breaker are process-wide; caches live in Sessions.
type Collector struct {
	Fetcher  Fetcher
	cfg      Config
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	observer Observer
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, cfg Config, obs Observer) *Collector {
	if cfg.Interval == "" {
		cfg.Interval = "1d"
	}
	if cfg.MinBars <= 0 {
		cfg.MinBars = 1
	}
	if obs == nil {
		obs = noopObserver{}
	}
	c := &Collector{Fetcher: fetcher, cfg: cfg, observer: obs}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	if cfg.Breaker.Enabled {
		threshold := cfg.Breaker.ConsecutiveFailures
		if threshold == 0 {
			threshold = 5
		}
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    fetcher.Name(),
			Timeout: cfg.Breaker.Cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			// Bad tickers and cancelled batches say nothing about provider health.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled) || model.KindOf(err) != model.KindInternal
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).
					Msg("provider circuit state changed")
			},
		})
	}
	return c
}

// Config returns the collector configuration.
func (c *Collector) Config() Config { return c.cfg }

// NewSession returns a fetch session with its own cache, meant to live for one batch.
func (c *Collector) NewSession() *Session {
	return &Session{c: c, cache: newSeriesCache(c.cfg.CacheSize)}
}

// Fetch is an uncached fetch of one ticker.
func (c *Collector) Fetch(ctx context.Context, ticker string, window int) (*model.PriceSeries, error) {
	if window <= 0 {
		window = c.cfg.LookbackBars
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, model.DataUnavailable(model.ReasonProvider, err)
		}
	}

	fctx := ctx
	if c.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, c.cfg.FetchTimeout)
		defer cancel()
	}

	start := time.Now()
	bars, err := c.callProvider(fctx, ticker, window)
	c.observer.ObserveFetch(c.Fetcher.Name(), time.Since(start), err)
	if err != nil {
		return nil, c.classify(ctx, fctx, err)
	}

	bars, err = cleanBars(bars)
	if err != nil {
		return nil, err
	}
	if len(bars) < c.cfg.MinBars {
		return nil, model.DataUnavailable(model.ReasonInsufficientHistory,
			fmt.Errorf("%s: %d bars, need %d", ticker, len(bars), c.cfg.MinBars))
	}
	return &model.PriceSeries{
		Symbol:    ticker,
		Interval:  c.cfg.Interval,
		Bars:      bars,
		FetchedAt: time.Now(),
	}, nil
}

func (c *Collector) callProvider(ctx context.Context, ticker string, window int) ([]model.OHLCV, error) {
	if c.breaker == nil {
		return c.Fetcher.FetchDailyBars(ctx, ticker, window)
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.Fetcher.FetchDailyBars(ctx, ticker, window)
	})
	if err != nil {
		return nil, err
	}
	return out.([]model.OHLCV), nil
}

// classify converts provider errors into the DataUnavailable taxonomy. A cancelled
// batch is returned as the bare context error so the caller can drop the unit.
func (c *Collector) classify(parent, fctx context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	var me *model.Error
	switch {
	case errors.Is(fctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return model.DataUnavailable(model.ReasonTimeout, err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return model.DataUnavailable("provider circuit open", err)
	case errors.As(err, &me):
		return err
	default:
		return model.DataUnavailable(model.ReasonProvider, err)
	}
}

// cleanBars sorts ascending, keeps the last bar per date and drops bars without a usable close.
func cleanBars(bars []model.OHLCV) ([]model.OHLCV, error) {
	if len(bars) == 0 {
		return nil, model.DataUnavailable(model.ReasonEmptyResponse, nil)
	}
	sorted := make([]model.OHLCV, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	out := sorted[:0]
	for _, b := range sorted {
		if b.Close <= 0 || math.IsNaN(b.Close) || math.IsNaN(b.Volume) || b.Volume < 0 {
			continue
		}
		if n := len(out); n > 0 && sameDay(out[n-1].Time, b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, model.DataUnavailable(model.ReasonMissingField, errors.New("no bar has a close price"))
	}
	return out, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// Session fetches through a batch-scoped cache. Concurrent requests for the same
// key share one provider call; only successful series are cached.
type Session struct {
	c     *Collector
	cache *seriesCache
	group singleflight.Group
}

// Fetch returns the cached series for (ticker, window, interval) or fetches it.
func (s *Session) Fetch(ctx context.Context, ticker string, window int) (*model.PriceSeries, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if window <= 0 {
		window = s.c.cfg.LookbackBars
	}
	key := cacheKey{Ticker: ticker, Window: window, Interval: s.c.cfg.Interval}
	if series, ok := s.cache.get(key); ok {
		s.c.observer.CacheHit()
		return series, nil
	}
	s.c.observer.CacheMiss()

	ch := s.group.DoChan(key.String(), func() (interface{}, error) {
		if series, ok := s.cache.get(key); ok {
			return series, nil
		}
		series, err := s.c.Fetch(ctx, ticker, window)
		if err != nil {
			return nil, err
		}
		s.cache.put(key, series)
		return series, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.PriceSeries), nil
	}
}

// Cached returns the number of cached series.
func (s *Session) Cached() int { return s.cache.len() }

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price  float64
	Series map[string][]model.OHLCV
	Errors map[string]error
	Delay  time.Duration

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.OHLCV, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[symbol]++
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if err, ok := m.Errors[symbol]; ok {
		return nil, err
	}
	if bars, ok := m.Series[symbol]; ok {
		return bars, nil
	}
	return generateMockBars(m.Price, days), nil
}

// Calls returns how many times symbol was fetched.
func (m *MockFetcher) Calls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

// TotalCalls returns the number of fetches across all symbols.
func (m *MockFetcher) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func generateMockBars(basePrice float64, count int) []model.OHLCV {
	if basePrice <= 0 {
		basePrice = 100
	}
	bars := make([]model.OHLCV, count)
	start := time.Now().UTC().Truncate(24 * time.Hour)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001 + 0.002*math.Sin(float64(i)))
		bars[i] = model.OHLCV{
			Time:   start.AddDate(0, 0, -(count - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000 + float64(i%5)*50000,
		}
	}
	return bars
}
