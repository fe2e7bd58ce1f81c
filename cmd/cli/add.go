package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hamed0406/tileprobe/internal/config"
)

// newAddCommand registers a target with a running API so the scheduler keeps
// probing it.
func newAddCommand() *cobra.Command {
	var (
		api       string
		key       string
		name      string
		url       string
		selector  string
		timeoutMS int
	)
	p := config.FromEnv().Probe

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a target with the tileprobe API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !strings.Contains(url, "://") {
				url = "http://" + url
			}
			body, _ := json.Marshal(map[string]any{
				"name": name, "url": url, "selector": selector, "timeout_ms": timeoutMS,
			})
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost,
				strings.TrimRight(api, "/")+"/api/targets", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			if key != "" {
				req.Header.Set("X-API-Key", key)
			}

			// the API runs one probe before answering
			client := &http.Client{Timeout: time.Duration(timeoutMS)*time.Millisecond + 30*time.Second}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("contacting API: %w", err)
			}
			defer resp.Body.Close()
			b, _ := io.ReadAll(resp.Body)

			if resp.StatusCode/100 != 2 {
				return fmt.Errorf("API returned %s: %s", resp.Status, strings.TrimSpace(string(b)))
			}
			var out struct {
				Summary struct {
					StatusLine string `json:"status_line"`
				} `json:"summary"`
			}
			_ = json.Unmarshal(b, &out)
			fmt.Fprintln(cmd.OutOrStdout(), "Added!", out.Summary.StatusLine)
			return nil
		},
	}

	cmd.Flags().StringVar(&api, "api", envOr("API_BASE", "http://localhost:8080"), "Base URL of the tileprobe API")
	cmd.Flags().StringVar(&key, "key", os.Getenv("ADMIN_API_KEY"), "Admin API key")
	cmd.Flags().StringVar(&name, "name", "", "Optional target name")
	cmd.Flags().StringVar(&url, "url", p.URL, "Page to probe")
	cmd.Flags().StringVar(&selector, "selector", p.Selector, "Readiness selector")
	cmd.Flags().IntVar(&timeoutMS, "timeout-ms", int(p.Timeout/time.Millisecond), "Probe timeout in milliseconds")
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
