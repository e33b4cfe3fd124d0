package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"BreakoutScanner/internal/model"
)

// DefaultYahooBaseURL is the public Yahoo Finance chart endpoint host.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using Yahoo Finance public API.
type YahooFetcher struct {
	client    *resty.Client
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
}

// NewYahooFetcher creates a new Yahoo Finance fetcher. An empty baseURL uses the public host.
func NewYahooFetcher(baseURL, proxyURL string) *YahooFetcher {
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", "Mozilla/5.0")
	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}
	return &YahooFetcher{
		client: client,
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
// Quote columns are pointers so that absent fields and null cells can be told apart.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   *[]*float64 `json:"open"`
					High   *[]*float64 `json:"high"`
					Low    *[]*float64 `json:"low"`
					Close  *[]*float64 `json:"close"`
					Volume *[]*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// column returns the i-th cell of a quote column; ok is false for null or short columns.
func column(col *[]*float64, i int) (float64, bool) {
	if col == nil || i >= len(*col) || (*col)[i] == nil {
		return 0, false
	}
	return *(*col)[i], true
}

func allNull(col *[]*float64) bool {
	if col == nil {
		return true
	}
	for _, v := range *col {
		if v != nil {
			return false
		}
	}
	return true
}

// yahooRange picks the smallest chart range holding bars trading sessions.
func yahooRange(bars int) string {
	calendar := bars*7/5 + 10
	switch {
	case calendar <= 30:
		return "1mo"
	case calendar <= 90:
		return "3mo"
	case calendar <= 180:
		return "6mo"
	case calendar <= 365:
		return "1y"
	case calendar <= 730:
		return "2y"
	default:
		return "5y"
	}
}

func (f *YahooFetcher) fetchChart(ctx context.Context, symbol, interval, rng string) ([]model.OHLCV, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetPathParam("symbol", f.yahooSymbol(symbol)).
		SetQueryParams(map[string]string{"interval": interval, "range": rng}).
		Get("/v8/finance/chart/{symbol}")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode(), resp.String())
	}

	var chart yahooChart
	if err := json.Unmarshal(resp.Body(), &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, model.DataUnavailable(model.ReasonEmptyResponse, fmt.Errorf("yahoo: no data for %s", symbol))
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, model.DataUnavailable(model.ReasonMissingField, fmt.Errorf("yahoo: no quote block for %s", symbol))
	}
	quote := result.Indicators.Quote[0]
	for name, col := range map[string]*[]*float64{
		"open": quote.Open, "high": quote.High, "low": quote.Low, "close": quote.Close, "volume": quote.Volume,
	} {
		if allNull(col) {
			return nil, model.DataUnavailable(model.ReasonMissingField, fmt.Errorf("yahoo: %s column absent for %s", name, symbol))
		}
	}

	bars := make([]model.OHLCV, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c, ok := column(quote.Close, i)
		if !ok {
			continue // holidays and halted sessions come back as nulls
		}
		v, ok := column(quote.Volume, i)
		if !ok {
			continue // a zero would read as a real volume
		}
		o, _ := column(quote.Open, i)
		h, _ := column(quote.High, i)
		l, _ := column(quote.Low, i)
		bars = append(bars, model.OHLCV{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: v,
		})
	}
	return bars, nil
}

// FetchDailyBars returns the trailing days daily bars (days counts sessions). Ordering and dedupe happen in Collector.
func (f *YahooFetcher) FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.OHLCV, error) {
	bars, err := f.fetchChart(ctx, symbol, "1d", yahooRange(days))
	if err != nil {
		return nil, err
	}
	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}
