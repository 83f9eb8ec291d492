// Command quiver is a phase-timed HTTP client: it sends requests while
// measuring DNS, TCP, TLS, time to first byte and content transfer
// separately.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/quiverhq/quiver/pkg/quiver"
)

var version = "0.3.0"

var (
	verbose  bool
	timeout  time.Duration
	insecure bool
)

var rootCmd = &cobra.Command{
	Use:     "quiver",
	Short:   "An HTTP client that times every phase of the exchange",
	Version: version,
	Long: `Quiver sends HTTP requests while independently measuring DNS lookup,
TCP connect, TLS handshake, time to first byte and content transfer.
Every exchange uses a fresh connection, so the connect phases are
re-measured on every request.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall budget per exchange")
	rootCmd.PersistentFlags().BoolVarP(&insecure, "insecure", "k", false, "Skip TLS certificate verification")
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func newDispatcher() *quiver.Dispatcher {
	return quiver.New(
		quiver.WithTimeout(timeout),
		quiver.WithInsecureTLS(insecure),
		quiver.WithLogger(newLogger()),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
