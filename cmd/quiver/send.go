package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/quiverhq/quiver/pkg/quiver"
)

var (
	sendMethod      string
	sendHeaders     []string
	sendBody        string
	sendContentType string
	sendFormat      string
	sendExtract     string
)

var sendCmd = &cobra.Command{
	Use:   "send URL",
	Short: "Execute one request and print its timing breakdown",
	Args:  cobra.ExactArgs(1),
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendMethod, "method", "X", "GET", "HTTP method (used exactly as given)")
	sendCmd.Flags().StringArrayVarP(&sendHeaders, "header", "H", nil, "Request header as 'Name: value'; repeatable")
	sendCmd.Flags().StringVarP(&sendBody, "data", "d", "", "Request body")
	sendCmd.Flags().StringVar(&sendContentType, "content-type", "", "Content type for the body (default application/json)")
	sendCmd.Flags().StringVar(&sendFormat, "format", "text", "Output format: text or json")
	sendCmd.Flags().StringVar(&sendExtract, "extract", "", "Print only this path from a JSON response body")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	spec := quiver.RequestSpec{
		Method:      sendMethod,
		URL:         args[0],
		ContentType: sendContentType,
	}
	for _, h := range sendHeaders {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return fmt.Errorf("malformed header %q, want 'Name: value'", h)
		}
		spec.Headers = append(spec.Headers, quiver.Header{
			Name:  strings.TrimSpace(name),
			Value: strings.TrimSpace(value),
		})
	}
	if sendBody != "" {
		spec.Body = []byte(sendBody)
	}

	d := newDispatcher()
	resp, err := d.Send(cmd.Context(), spec)
	if err != nil {
		return err
	}

	if sendExtract != "" {
		result := gjson.GetBytes(resp.Body, sendExtract)
		if !result.Exists() {
			return fmt.Errorf("path %q not found in response body", sendExtract)
		}
		fmt.Println(result.String())
		return nil
	}

	switch sendFormat {
	case "json":
		return printSendJSON(resp)
	default:
		printSendText(resp)
		return nil
	}
}

func printSendText(resp *quiver.Response) {
	fmt.Printf("%s %s\n\n", resp.Proto, resp.Status)

	m := resp.Metrics
	fmt.Printf("  dns:      %v\n", m.DNS)
	fmt.Printf("  tcp:      %v\n", m.Connect)
	fmt.Printf("  tls:      %v\n", m.TLS)
	fmt.Printf("  ttfb:     %v\n", m.TimeToFirstByte)
	fmt.Printf("  transfer: %v\n", m.ContentTransfer)
	fmt.Printf("  total:    %v\n", m.Total)

	if len(resp.Body) > 0 {
		fmt.Printf("\n%s\n", resp.Body)
	}
}

func printSendJSON(resp *quiver.Response) error {
	out := struct {
		Status  int                   `json:"status"`
		Proto   string                `json:"proto"`
		Headers map[string][]string   `json:"headers"`
		Body    string                `json:"body"`
		Metrics quiver.RequestMetrics `json:"metrics"`
	}{
		Status:  resp.StatusCode,
		Proto:   resp.Proto,
		Headers: resp.Header,
		Body:    string(resp.Body),
		Metrics: resp.Metrics,
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
