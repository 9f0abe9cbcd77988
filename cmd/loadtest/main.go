// Command loadtest drives the search API with a fixed query mix and reports
// latency per dependence mode, so the cost of SD and FD passes can be
// compared with plain BM25 on the same deployment.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s] [-rps 0]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var modes = []string{"", "SD", "FD"}

var queries = []string{
	"quick brown fox",
	"proximity search",
	"term dependence model",
	"inverted index positions",
	"ordered window unordered window",
	"{search retrieval} ranking",
	"sequential dependence scoring",
	"full dependence pairs",
	"bm25 ranking function",
	"document length normalization",
}

// modeStats collects the outcome of every request sent with one mode.
type modeStats struct {
	mu        sync.Mutex
	latencies []time.Duration
	errors    int
	status    map[int]int
	outcomes  map[string]int
}

func newModeStats() *modeStats {
	return &modeStats{status: make(map[int]int), outcomes: make(map[string]int)}
}

func (s *modeStats) record(d time.Duration, status int, outcome string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errors++
		return
	}
	s.status[status]++
	if status < 200 || status >= 300 {
		s.errors++
		return
	}
	s.latencies = append(s.latencies, d)
	if outcome != "" {
		s.outcomes[outcome]++
	}
}

type searchResponse struct {
	Dependence *struct {
		Outcome string `json:"outcome"`
	} `json:"dependence"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	rps := flag.Float64("rps", 0, "total requests per second, 0 for unlimited")
	flag.Parse()

	limiter := rate.NewLimiter(rate.Inf, *concurrency)
	if *rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(*rps), *concurrency)
	}

	fmt.Println("=== Proximity Search Load Test ===")
	fmt.Printf("Target:      %s\n", *baseURL)
	fmt.Printf("Concurrency: %d\n", *concurrency)
	fmt.Printf("Duration:    %s\n", *duration)
	if *rps > 0 {
		fmt.Printf("Rate:        %.1f req/s\n", *rps)
	}
	fmt.Println()

	stats := run(*baseURL, *concurrency, *duration, limiter)
	if !report(stats, *duration) {
		fmt.Println("WARNING: no request succeeded. Is the searcher running?")
		os.Exit(1)
	}
}

func run(baseURL string, concurrency int, duration time.Duration, limiter *rate.Limiter) map[string]*modeStats {
	stats := make(map[string]*modeStats, len(modes))
	for _, m := range modes {
		stats[m] = newModeStats()
	}
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for n := worker; ; n++ {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				mode := modes[n%len(modes)]
				query := queries[(n/len(modes))%len(queries)]
				d, status, outcome, err := search(ctx, client, baseURL, query, mode)
				if ctx.Err() != nil {
					return
				}
				stats[mode].record(d, status, outcome, err)
			}
		}(w)
	}
	wg.Wait()
	return stats
}

func search(ctx context.Context, client *http.Client, baseURL, query, mode string) (time.Duration, int, string, error) {
	params := url.Values{"q": {query}, "limit": {"10"}}
	if mode != "" {
		params.Set("mode", mode)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/v1/search?"+params.Encode(), nil)
	if err != nil {
		return 0, 0, "", err
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return time.Since(start), 0, "", err
	}
	defer resp.Body.Close()
	var body searchResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	d := time.Since(start)
	if decodeErr != nil || body.Dependence == nil {
		return d, resp.StatusCode, "", nil
	}
	return d, resp.StatusCode, body.Dependence.Outcome, nil
}

// report prints one block per mode and reports whether anything succeeded.
func report(stats map[string]*modeStats, duration time.Duration) bool {
	succeeded := false
	for _, mode := range modes {
		s := stats[mode]
		s.mu.Lock()
		name := mode
		if name == "" {
			name = "configured"
		}
		total := len(s.latencies) + s.errors
		fmt.Printf("=== mode %s ===\n", name)
		fmt.Printf("Requests:     %d (%.1f/s)\n", total, float64(total)/duration.Seconds())
		fmt.Printf("Errors:       %d\n", s.errors)
		if len(s.latencies) > 0 {
			succeeded = true
			sorted := append([]time.Duration(nil), s.latencies...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
			fmt.Printf("Latency:      p50=%s p95=%s p99=%s max=%s\n",
				percentile(sorted, 50), percentile(sorted, 95), percentile(sorted, 99), sorted[len(sorted)-1])
		}
		for _, outcome := range []string{"applied", "partial", "skipped"} {
			if n := s.outcomes[outcome]; n > 0 {
				fmt.Printf("Dependence:   %-8s %d\n", outcome, n)
			}
		}
		codes := make([]int, 0, len(s.status))
		for c := range s.status {
			codes = append(codes, c)
		}
		sort.Ints(codes)
		for _, c := range codes {
			fmt.Printf("Status %d:   %d\n", c, s.status[c])
		}
		fmt.Println()
		s.mu.Unlock()
	}
	return succeeded
}

func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p*len(sorted)+99)/100 - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
