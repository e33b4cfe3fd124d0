// Package universe resolves the ticker sets handed to a scan.
package universe

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default is the built-in list of liquid large caps trading above $5.
var Default = []string{"AAPL", "TSLA", "NVDA", "MSFT", "GOOGL", "AMZN", "META", "NFLX", "AMD", "INTC"}

// Normalize trims, upper-cases and dedupes tickers, keeping first-seen order.
func Normalize(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Split parses a comma or whitespace separated ticker list.
func Split(s string) []string {
	return Normalize(strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == ';'
	}))
}

// LoadWatchlist reads a watchlist. YAML files hold a list of symbols (or a map with a
// "tickers" key); any other file holds one symbol per line with # comments.
func LoadWatchlist(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		return parseLines(data)
	}
}

func parseYAML(data []byte) ([]string, error) {
	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return Normalize(list), nil
	}
	var doc struct {
		Tickers []string `yaml:"tickers"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse watchlist: %w", err)
	}
	return Normalize(doc.Tickers), nil
}

func parseLines(data []byte) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		out = append(out, Split(line)...)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parse watchlist: %w", err)
	}
	return Normalize(out), nil
}

// SaveWatchlist writes one ticker per line.
func SaveWatchlist(path string, tickers []string) error {
	var b strings.Builder
	for _, t := range Normalize(tickers) {
		b.WriteString(t)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write watchlist: %w", err)
	}
	return nil
}

// Resolve merges explicit tickers with a watchlist, falling back to Default when both are empty.
func Resolve(explicit []string, watchlistPath string) ([]string, error) {
	all := append([]string{}, explicit...)
	if watchlistPath != "" {
		wl, err := LoadWatchlist(watchlistPath)
		if err != nil {
			return nil, err
		}
		all = append(all, wl...)
	}
	out := Normalize(all)
	if len(out) == 0 {
		return append([]string{}, Default...), nil
	}
	return out, nil
}
