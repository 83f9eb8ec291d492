package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/quiverhq/quiver/pkg/quiver"
)

var (
	benchIterations  int
	benchConcurrency int
	benchMethod      string
	benchFormat      string
	benchDetails     bool
)

var benchCmd = &cobra.Command{
	Use:   "bench URL",
	Short: "Probe a URL repeatedly and summarize the latency distribution",
	Args:  cobra.ExactArgs(1),
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().IntVarP(&benchIterations, "iterations", "n", 10, "Number of exchanges")
	benchCmd.Flags().IntVarP(&benchConcurrency, "concurrency", "c", 1, "Number of concurrent exchanges")
	benchCmd.Flags().StringVarP(&benchMethod, "method", "X", "GET", "HTTP method")
	benchCmd.Flags().StringVar(&benchFormat, "format", "text", "Output format: text, json, or short")
	benchCmd.Flags().BoolVar(&benchDetails, "details", false, "Show the per-exchange phase breakdown")
	rootCmd.AddCommand(benchCmd)
}

// benchResult holds the outcome of a single exchange.
type benchResult struct {
	Iteration  int           `json:"iteration"`
	StatusCode int           `json:"status_code,omitempty"`
	Error      string        `json:"error,omitempty"`
	DNS        time.Duration `json:"dns_ns,omitempty"`
	Connect    time.Duration `json:"connect_ns,omitempty"`
	TLS        time.Duration `json:"tls_ns,omitempty"`
	TTFB       time.Duration `json:"ttfb_ns,omitempty"`
	Transfer   time.Duration `json:"transfer_ns,omitempty"`
	Total      time.Duration `json:"total_ns,omitempty"`
}

// benchSummary holds aggregate statistics over all exchanges.
type benchSummary struct {
	URL        string        `json:"url"`
	Iterations int           `json:"iterations"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Min        time.Duration `json:"min_ns"`
	Max        time.Duration `json:"max_ns"`
	Average    time.Duration `json:"average_ns"`
	Median     time.Duration `json:"median_ns"`
	P90        time.Duration `json:"p90_ns"`
	P99        time.Duration `json:"p99_ns"`
	Results    []benchResult `json:"results,omitempty"`
}

func runBench(cmd *cobra.Command, args []string) error {
	url := args[0]
	if benchIterations < 1 {
		benchIterations = 1
	}
	if benchConcurrency < 1 {
		benchConcurrency = 1
	}

	d := newDispatcher()

	results := make([]benchResult, benchIterations)
	sem := make(chan struct{}, benchConcurrency)
	var wg sync.WaitGroup

	for i := 0; i < benchIterations; i++ {
		wg.Add(1)
		go func(iteration int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[iteration] = probeOnce(cmd.Context(), d, benchMethod, url, iteration)
		}(i)
	}
	wg.Wait()

	summary := summarize(url, results)

	switch benchFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(summary)
	case "short":
		printShort(summary)
	default:
		printSummary(summary, benchDetails)
	}
	return nil
}

func probeOnce(ctx context.Context, d *quiver.Dispatcher, method, url string, iteration int) benchResult {
	resp, err := d.Send(ctx, quiver.RequestSpec{Method: method, URL: url})
	if err != nil {
		return benchResult{Iteration: iteration, Error: err.Error()}
	}

	m := resp.Metrics
	return benchResult{
		Iteration:  iteration,
		StatusCode: resp.StatusCode,
		DNS:        m.DNS,
		Connect:    m.Connect,
		TLS:        m.TLS,
		TTFB:       m.TimeToFirstByte,
		Transfer:   m.ContentTransfer,
		Total:      m.Total,
	}
}

func summarize(url string, results []benchResult) benchSummary {
	summary := benchSummary{
		URL:        url,
		Iterations: len(results),
		Results:    results,
	}

	var successful []time.Duration
	for _, r := range results {
		if r.Error == "" {
			summary.Successful++
			successful = append(successful, r.Total)
		} else {
			summary.Failed++
		}
	}

	if len(successful) == 0 {
		return summary
	}

	sort.Slice(successful, func(i, j int) bool {
		return successful[i] < successful[j]
	})

	summary.Min = successful[0]
	summary.Max = successful[len(successful)-1]

	var sum time.Duration
	for _, d := range successful {
		sum += d
	}
	summary.Average = sum / time.Duration(len(successful))

	if len(successful)%2 == 0 {
		summary.Median = (successful[len(successful)/2-1] + successful[len(successful)/2]) / 2
	} else {
		summary.Median = successful[len(successful)/2]
	}

	summary.P90 = successful[percentileIndex(len(successful), 0.9)]
	summary.P99 = successful[percentileIndex(len(successful), 0.99)]

	return summary
}

func percentileIndex(n int, p float64) int {
	i := int(float64(n) * p)
	if i >= n {
		i = n - 1
	}
	return i
}

func printSummary(summary benchSummary, showDetails bool) {
	fmt.Printf("\n=== Summary for %s ===\n", summary.URL)
	fmt.Printf("Iterations: %d (Success: %d, Failed: %d)\n", summary.Iterations, summary.Successful, summary.Failed)

	if summary.Successful > 0 {
		fmt.Printf("\nLatency Statistics:\n")
		fmt.Printf("  Min:     %v\n", summary.Min.Round(time.Millisecond))
		fmt.Printf("  Max:     %v\n", summary.Max.Round(time.Millisecond))
		fmt.Printf("  Average: %v\n", summary.Average.Round(time.Millisecond))
		fmt.Printf("  Median:  %v\n", summary.Median.Round(time.Millisecond))
		fmt.Printf("  P90:     %v\n", summary.P90.Round(time.Millisecond))
		fmt.Printf("  P99:     %v\n", summary.P99.Round(time.Millisecond))
	}

	if showDetails {
		fmt.Printf("\nDetailed Results:\n")
		for _, r := range summary.Results {
			if r.Error != "" {
				fmt.Printf("  #%d: ERROR: %s\n", r.Iteration+1, r.Error)
				continue
			}
			fmt.Printf("  #%d: %v (dns=%v tcp=%v tls=%v ttfb=%v transfer=%v) [%d]\n",
				r.Iteration+1,
				r.Total.Round(time.Millisecond),
				r.DNS.Round(time.Millisecond),
				r.Connect.Round(time.Millisecond),
				r.TLS.Round(time.Millisecond),
				r.TTFB.Round(time.Millisecond),
				r.Transfer.Round(time.Millisecond),
				r.StatusCode)
		}
	}
}

func printShort(summary benchSummary) {
	if summary.Successful == 0 {
		fmt.Printf("%s: all exchanges failed (%d/%d)\n", summary.URL, summary.Failed, summary.Iterations)
		return
	}
	fmt.Printf("%s: avg=%v min=%v max=%v p90=%v p99=%v (success=%d/%d)\n",
		summary.URL,
		summary.Average.Round(time.Millisecond),
		summary.Min.Round(time.Millisecond),
		summary.Max.Round(time.Millisecond),
		summary.P90.Round(time.Millisecond),
		summary.P99.Round(time.Millisecond),
		summary.Successful,
		summary.Iterations)
}
