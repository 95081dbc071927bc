// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/accountd/accountd/internal/config"
)

// ProbeStatus is the result of one health probe.
type ProbeStatus struct {
	Probe     string `json:"probe"`
	Healthy   bool   `json:"healthy"`
	HTTPCode  int    `json:"http_code,omitempty"`
	Body      string `json:"body,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// probes are queried in this order.
var probes = []string{"liveness", "readiness"}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
	timeout    time.Duration
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query the health endpoints of a running accountd",
		Long: `Query /healthz/liveness and /healthz/readiness on the metrics address.
Exits non-zero when any probe fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().String("metrics-addr", config.Default().HTTP.MetricsAddr, "metrics/health HTTP address of the server")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 2*time.Second, "per-probe timeout")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	opts, err := configOptions(cmd)
	if err != nil {
		return err
	}
	loaded, err := config.LoadUnvalidated(opts)
	if err != nil {
		return err
	}
	addr := loaded.HTTP.MetricsAddr
	if addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("metrics address is empty; the health endpoints are disabled")
	}

	client := &http.Client{Timeout: cfg.timeout}
	statuses := make([]ProbeStatus, 0, len(probes))
	healthy := true
	for _, probe := range probes {
		st := queryProbe(cmd.Context(), client, baseURL(addr), probe)
		healthy = healthy && st.Healthy
		statuses = append(statuses, st)
	}

	if cfg.jsonOutput {
		out, err := formatStatusJSON(statuses)
		if err != nil {
			return err
		}
		cmd.Println(out)
	} else {
		cmd.Print(formatStatusTable(statuses))
	}

	if !healthy {
		return oops.Code("SERVER_UNHEALTHY").With("addr", addr).Errorf("accountd at %s is not healthy", addr)
	}
	return nil
}

// baseURL turns a listen address into a URL a client can dial. An empty
// host means the server listens on all interfaces.
func baseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimSuffix(addr, "/")
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

func queryProbe(ctx context.Context, client *http.Client, base, probe string) ProbeStatus {
	st := ProbeStatus{Probe: probe}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/healthz/"+probe, http.NoBody)
	if err != nil {
		st.Error = err.Error()
		return st
	}

	start := time.Now()
	resp, err := client.Do(req)
	st.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		st.Error = fmt.Sprintf("failed to connect: %v", err)
		return st
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	st.HTTPCode = resp.StatusCode
	st.Body = strings.TrimSpace(string(body))
	st.Healthy = resp.StatusCode == http.StatusOK
	return st
}

// formatStatusTable formats the probes as a human-readable table.
func formatStatusTable(statuses []ProbeStatus) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "PROBE\tSTATUS\tCODE\tLATENCY\tDETAIL")
	_, _ = fmt.Fprintln(w, "-----\t------\t----\t-------\t------")

	for _, st := range statuses {
		state := "ok"
		if !st.Healthy {
			state = "failing"
		}
		code := "-"
		if st.HTTPCode != 0 {
			code = fmt.Sprintf("%d", st.HTTPCode)
		}
		detail := st.Body
		if st.Error != "" {
			detail = st.Error
		}
		if detail == "" {
			detail = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%dms\t%s\n", st.Probe, state, code, st.LatencyMS, detail)
	}

	_ = w.Flush()
	return b.String()
}

// formatStatusJSON formats the probes as JSON.
func formatStatusJSON(statuses []ProbeStatus) (string, error) {
	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return "", oops.Code("STATUS_FORMAT_FAILED").Wrap(err)
	}
	return string(data), nil
}
