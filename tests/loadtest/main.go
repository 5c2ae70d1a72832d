package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

var (
	baseURL    = flag.String("url", "http://127.0.0.1:18090", "forwarder base URL")
	feed       = flag.Int64("feed", -1001, "monitored feed id the events claim to come from")
	numWorkers = flag.Int("workers", 20, "concurrent clients")
	duration   = flag.Duration("duration", 10*time.Second, "length of each phase")
)

var phrases = []string{
	"BTC breaks resistance",
	"ETH gas fees drop",
	"weather is fine today",
	"new listing: SOL perpetuals",
	"btc dominance rising",
	"lunch menu update",
}

var httpClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 200,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	},
}

type result struct {
	endpoint string
	status   int
	latency  time.Duration
	err      bool
}

type stats struct {
	count     int64
	errors    int64
	latencies []time.Duration
}

type inputEvent struct {
	Kind      string  `json:"kind"`
	Feed      int64   `json:"feed"`
	MessageID int64   `json:"message_id"`
	Text      *string `json:"text,omitempty"`
	Date      int64   `json:"date"`
}

// ids hands out message ids so edits and deletes hit messages that exist.
var ids atomic.Int64

func main() {
	flag.Parse()

	fmt.Println("=== Forwarder Load Test ===")
	fmt.Printf("Workers: %d | Phase: %s | Feed: %d\n\n", *numWorkers, *duration, *feed)

	fmt.Print("Waiting for server... ")
	for i := 0; i < 30; i++ {
		resp, err := httpClient.Get(*baseURL + "/health")
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			break
		}
		if i == 29 {
			fmt.Println("FAILED: server not responding")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println("OK")

	fmt.Println("\n--- Phase 1: New messages (POST /events) ---")
	runPhase(func(rng *rand.Rand) result {
		return postEvent("new", ids.Add(1), rng)
	})

	fmt.Println("\n--- Phase 2: Lifecycle mix (60% new, 25% edit, 10% delete, 5% lookup) ---")
	runPhase(func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.60:
			return postEvent("new", ids.Add(1), rng)
		case r < 0.85:
			return postEvent("edited", randomExisting(rng), rng)
		case r < 0.95:
			return postEvent("deleted", randomExisting(rng), rng)
		default:
			return getRelay(randomExisting(rng))
		}
	})

	fmt.Println("\n--- Phase 3: Read-heavy (90% lookup, 10% health) ---")
	runPhase(func(rng *rand.Rand) result {
		if rng.Float64() < 0.9 {
			return getRelay(randomExisting(rng))
		}
		return getHealth()
	})
}

func randomExisting(rng *rand.Rand) int64 {
	n := ids.Load()
	if n == 0 {
		return 1
	}
	return rng.Int63n(n) + 1
}

func runPhase(workFn func(rng *rand.Rand) result) {
	results := make(chan result, 10000)
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < *numWorkers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
					results <- workFn(rng)
				}
			}
		}(rand.Int63() + int64(i))
	}

	allResults := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := allResults[r.endpoint]
			if !ok {
				s = &stats{}
				allResults[r.endpoint] = s
			}
			s.count++
			if r.err {
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	time.Sleep(*duration)
	close(stop)
	wg.Wait()
	close(results)
	<-done

	printResults(allResults, *duration)
}

func printResults(allResults map[string]*stats, d time.Duration) {
	var totalOps int64
	var totalErrors int64

	endpoints := make([]string, 0, len(allResults))
	for ep := range allResults {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	fmt.Printf("\n  %-22s %8s %6s %10s %10s %10s %10s\n",
		"Endpoint", "Reqs", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + strings.Repeat("-", 88))

	for _, ep := range endpoints {
		s := allResults[ep]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		fmt.Printf("  %-22s %8d %6d %10s %10s %10s %10s\n",
			ep, s.count, s.errors,
			fmtDur(avgDuration(s.latencies)),
			fmtDur(percentile(s.latencies, 0.50)),
			fmtDur(percentile(s.latencies, 0.95)),
			fmtDur(percentile(s.latencies, 0.99)))
	}

	if totalOps == 0 {
		return
	}
	fmt.Println("  " + strings.Repeat("-", 88))
	fmt.Printf("  Total: %d reqs | Errors: %d (%.1f%%) | RPS: %.0f\n",
		totalOps, totalErrors, float64(totalErrors)/float64(totalOps)*100, float64(totalOps)/d.Seconds())
}

func postEvent(kind string, id int64, rng *rand.Rand) result {
	evt := inputEvent{Kind: kind, Feed: *feed, MessageID: id, Date: time.Now().Unix()}
	if kind != "deleted" {
		text := fmt.Sprintf("%s #%d", phrases[rng.Intn(len(phrases))], id)
		evt.Text = &text
	}

	data, _ := json.Marshal(evt)
	endpoint := "POST /events " + kind
	start := time.Now()
	resp, err := httpClient.Post(*baseURL+"/events", "application/json", bytes.NewReader(data))
	lat := time.Since(start)
	if err != nil {
		return result{endpoint, 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{endpoint, resp.StatusCode, lat, resp.StatusCode != http.StatusAccepted}
}

func getRelay(id int64) result {
	url := fmt.Sprintf("%s/relays?feed=%d&msg=%d", *baseURL, *feed, id)
	start := time.Now()
	resp, err := httpClient.Get(url)
	lat := time.Since(start)
	if err != nil {
		return result{"GET /relays", 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	// 404 is expected for filtered or retired messages
	ok := resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNotFound
	return result{"GET /relays", resp.StatusCode, lat, !ok}
}

func getHealth() result {
	start := time.Now()
	resp, err := httpClient.Get(*baseURL + "/health")
	lat := time.Since(start)
	if err != nil {
		return result{"GET /health", 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{"GET /health", resp.StatusCode, lat, resp.StatusCode != http.StatusOK}
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}
