package quiver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// TestConcurrentSendsIsolated verifies concurrent exchanges never
// cross-contaminate: each call's response and metrics reflect only its own
// target.
func TestConcurrentSendsIsolated(t *testing.T) {
	const slowDelay = 100 * time.Millisecond

	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fast"))
	}))
	defer fast.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(slowDelay)
		w.Write([]byte("slow"))
	}))
	defer slow.Close()

	d := New()

	const pairs = 8
	var wg sync.WaitGroup
	responses := make([]*Response, pairs*2)
	errs := make([]error, pairs*2)

	for i := 0; i < pairs*2; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()

			url := fast.URL
			if index%2 == 1 {
				url = slow.URL
			}
			responses[index], errs[index] = d.Send(context.Background(), RequestSpec{Method: "GET", URL: url})
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < pairs*2; i++ {
		if errs[i] != nil {
			t.Errorf("Exchange %d failed: %v", i, errs[i])
			continue
		}
		resp := responses[i]

		wantBody := "fast"
		if i%2 == 1 {
			wantBody = "slow"
		}
		if string(resp.Body) != wantBody {
			t.Errorf("Exchange %d: expected body %q, got %q", i, wantBody, resp.Body)
		}

		// Slow exchanges must carry the handler delay in their own TTFB;
		// fast ones must not have inherited it.
		if i%2 == 1 && resp.Metrics.TimeToFirstByte < slowDelay-20*time.Millisecond {
			t.Errorf("Exchange %d: slow TTFB too small: %v", i, resp.Metrics.TimeToFirstByte)
		}
		if i%2 == 0 && resp.Metrics.TimeToFirstByte > slowDelay-20*time.Millisecond {
			t.Errorf("Exchange %d: fast TTFB contaminated: %v", i, resp.Metrics.TimeToFirstByte)
		}

		if resp.Metrics.ID == "" {
			t.Errorf("Exchange %d: missing correlation ID", i)
		}
		if seen[resp.Metrics.ID] {
			t.Errorf("Exchange %d: duplicate correlation ID %q", i, resp.Metrics.ID)
		}
		seen[resp.Metrics.ID] = true
	}
}

// TestCancelledExchangesLeaveNoState verifies a burst of cancelled calls
// leaves nothing behind that a later exchange could observe.
func TestCancelledExchangesLeaveNoState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/hang" {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
			return
		}
		w.Write([]byte("clean"))
	}))
	defer server.Close()

	d := New()

	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := d.Send(ctx, RequestSpec{Method: "GET", URL: server.URL + "/hang"})
		cancel()
		if err == nil {
			t.Fatalf("Exchange %d: expected cancellation", i)
		}
	}

	if _, ok := d.LastMetrics(); ok {
		t.Error("Expected no stored metrics after cancelled exchanges only")
	}

	resp, err := d.Send(context.Background(), RequestSpec{Method: "GET", URL: server.URL})
	if err != nil {
		t.Fatalf("Follow-up exchange failed: %v", err)
	}
	if string(resp.Body) != "clean" {
		t.Errorf("Expected body clean, got %q", resp.Body)
	}

	last, ok := d.LastMetrics()
	if !ok {
		t.Fatal("Expected metrics from the successful exchange")
	}
	if last.ID != resp.Metrics.ID {
		t.Errorf("Expected last metrics to belong to the successful exchange")
	}
}

// TestConcurrentDistinctBodies verifies response bodies are never swapped
// between concurrent exchanges.
func TestConcurrentDistinctBodies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "payload-%s", r.URL.Query().Get("n"))
	}))
	defer server.Close()

	d := New()

	const concurrency = 16
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			url := fmt.Sprintf("%s/?n=%d", server.URL, n)
			resp, err := d.Send(context.Background(), RequestSpec{Method: "GET", URL: url})
			if err != nil {
				t.Errorf("Exchange %d failed: %v", n, err)
				return
			}
			want := fmt.Sprintf("payload-%d", n)
			if string(resp.Body) != want {
				t.Errorf("Exchange %d: expected %q, got %q", n, want, resp.Body)
			}
		}(i)
	}
	wg.Wait()
}
