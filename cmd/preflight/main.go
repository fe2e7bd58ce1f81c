// cmd/preflight/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hamed0406/tileprobe/internal/config"
	"github.com/hamed0406/tileprobe/internal/probe"
)

func main() {
	failed := false
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		failed = true
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg := config.FromEnv()

	admin := strings.TrimSpace(os.Getenv("ADMIN_API_KEYS"))
	pub := strings.TrimSpace(os.Getenv("PUBLIC_API_KEYS"))

	if admin == "" {
		warn("ADMIN_API_KEYS is empty (admin routes are open).")
	}
	if pub == "" {
		warn("PUBLIC_API_KEYS is empty (read routes are open unless admin keys are set).")
	}
	// Normalize and sanity-check lists (no spaces around commas).
	for name, v := range map[string]string{"ADMIN_API_KEYS": admin, "PUBLIC_API_KEYS": pub} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}
	ok("API_ADDR=" + cfg.Addr)

	if cfg.DatabaseURL == "" {
		warn("DATABASE_URL empty: API will use in-memory stores.")
	} else {
		ok("DATABASE_URL present")
	}
	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty: any origin may call the API.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	if v := os.Getenv("PROBE_VIEWPORT"); v != "" {
		if _, _, good := config.ParseViewport(v); !good {
			fail("PROBE_VIEWPORT=" + v + " is not WIDTHxHEIGHT.")
		}
	}
	t := probe.Target{URL: cfg.Probe.URL, Selector: cfg.Probe.Selector, Timeout: cfg.Probe.Timeout}
	if err := t.Validate(); err != nil {
		fail("probe target: " + err.Error())
	} else {
		ok(fmt.Sprintf("probe target %s waits for %q up to %s", t.URL, t.Selector, t.Timeout))
	}

	if cfg.S3.Enabled() {
		if cfg.S3.AccessKeyID == "" || cfg.S3.SecretAccessKey == "" {
			warn("S3_BUCKET set without AWS keys; the default credential chain will be used.")
		}
		ok("screenshots go to s3://" + cfg.S3.Bucket + "/" + cfg.Probe.OutputDir)
	} else {
		ok("screenshots go to " + cfg.Probe.OutputDir)
	}

	if cfg.SlackWebhookURL == "" {
		warn("SLACK_WEBHOOK_URL empty: readiness alerts are disabled.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r := probe.NewReachabilityChecker(5 * time.Second).Check(ctx, cfg.Probe.URL)
	if r.Up {
		ok(fmt.Sprintf("%s answered %s in %.0f ms", cfg.Probe.URL, r.Message, r.LatencyMS))
		if !r.HTML {
			warn(fmt.Sprintf("%s is not served as HTML (content type %q)", cfg.Probe.URL, r.ContentType))
		}
	} else {
		fail(cfg.Probe.URL + " is not answering: " + r.Message)
	}

	if failed {
		os.Exit(1)
	}
	ok("preflight passed")
}
