package main

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/spf13/cobra"

	"github.com/quiverhq/quiver/internal/config"
	"github.com/quiverhq/quiver/pkg/quiver"
)

var watchConfigPath string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Probe configured targets in a live terminal dashboard",
	Long: `Watch probes every configured target repeatedly and renders the results
in a terminal table. Press r to re-run all probes, q to quit. Targets come
from a YAML file; without one, a small default set is used.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchConfigPath, "config", "f", "", "Path to a YAML target config")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if watchConfigPath != "" {
		loaded, err := config.Load(watchConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if err := ui.Init(); err != nil {
		return err
	}
	defer ui.Close()

	d := newDispatcher()

	probeAll(cmd.Context(), d, cfg)

	uiEvents := ui.PollEvents()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case e := <-uiEvents:
			switch e.ID {
			case "r":
				probeAll(cmd.Context(), d, cfg)
			case "q", "<C-c>":
				return nil
			}
		case <-ticker.C:
			probeAll(cmd.Context(), d, cfg)
		}
	}
}

// probeAll runs every target through the dispatcher and renders the table as
// results come in.
func probeAll(ctx context.Context, d *quiver.Dispatcher, cfg *config.Config) {
	const maxConcurrent = 16
	sem := make(chan struct{}, maxConcurrent)
	var mtx sync.Mutex
	var wg sync.WaitGroup

	results := make([][]time.Duration, len(cfg.Targets))

	table := widgets.NewTable()
	table.ColumnWidths = []int{20, 9}
	table.Rows = append(table.Rows, []string{"Target", "avg"})
	for i := 0; i < cfg.Iterations; i++ {
		table.Rows[0] = append(table.Rows[0], strconv.Itoa(i+1))
		table.ColumnWidths = append(table.ColumnWidths, 9)
	}

	for i, tgt := range cfg.Targets {
		table.Rows = append(table.Rows, make([]string, cfg.Iterations+2))
		table.Rows[i+1][0] = tgt.Name
		results[i] = make([]time.Duration, cfg.Iterations)
	}

	table.SetRect(2, 2, (cfg.Iterations*10)+32, len(cfg.Targets)*2+3)
	table.TextStyle = ui.NewStyle(ui.ColorWhite)
	table.TextAlignment = ui.AlignCenter
	ui.Render(table)

	for i, tgt := range cfg.Targets {
		for iter := 0; iter < cfg.Iterations; iter++ {
			wg.Add(1)
			go func(row, iter int, tgt config.Target) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				resp, err := d.Send(ctx, quiver.RequestSpec{Method: tgt.Method, URL: tgt.URL})

				mtx.Lock()
				defer mtx.Unlock()
				if err != nil {
					table.Rows[row+1][iter+2] = "???"
					return
				}
				results[row][iter] = resp.Metrics.Total
				table.Rows[row+1][iter+2] = resp.Metrics.Total.Truncate(time.Millisecond).String()
				ui.Render(table)
			}(i, iter, tgt)
		}
	}
	wg.Wait()

	fillAverages(results, table)
	sortByAverage(table)
	colorizeRows(table)
	ui.Render(table)
}

func fillAverages(results [][]time.Duration, table *widgets.Table) {
	for i, row := range results {
		var sum time.Duration
		var n int
		for _, d := range row {
			if d > 0 {
				sum += d
				n++
			}
		}
		if n == 0 {
			table.Rows[i+1][1] = "-"
			continue
		}
		table.Rows[i+1][1] = (sum / time.Duration(n)).Truncate(time.Millisecond).String()
	}
}

func sortByAverage(table *widgets.Table) {
	sort.SliceStable(table.Rows[1:], func(i, j int) bool {
		rows := table.Rows[1:]
		ti, erri := time.ParseDuration(rows[i][1])
		if erri != nil {
			return false
		}
		tj, errj := time.ParseDuration(rows[j][1])
		if errj != nil {
			return true
		}
		return ti < tj
	})
}

func colorizeRows(table *widgets.Table) {
	for i := 1; i < len(table.Rows); i++ {
		avg, err := time.ParseDuration(table.Rows[i][1])
		if err != nil {
			table.RowStyles[i] = ui.NewStyle(ui.ColorRed)
			continue
		}
		switch {
		case avg < 100*time.Millisecond:
			table.RowStyles[i] = ui.NewStyle(ui.ColorGreen)
		case avg < 250*time.Millisecond:
			table.RowStyles[i] = ui.NewStyle(ui.ColorYellow)
		default:
			table.RowStyles[i] = ui.NewStyle(ui.ColorRed)
		}
	}
}
