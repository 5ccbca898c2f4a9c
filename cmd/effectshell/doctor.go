package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/Mindburn-Labs/effectshell/pkg/config"
	"github.com/Mindburn-Labs/effectshell/pkg/kv"
	"github.com/Mindburn-Labs/effectshell/pkg/objectstore"
)

type checkStatus string

const (
	statusOK   checkStatus = "ok"
	statusWarn checkStatus = "warn"
	statusFail checkStatus = "fail"
)

type checkResult struct {
	Name   string      `json:"name"`
	Status checkStatus `json:"status"`
	Detail string      `json:"detail"`
}

func runDoctorCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("doctor", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		configPath string
		jsonOutput bool
	)
	cmd.StringVar(&configPath, "config", "", "Path to config file (YAML)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results := []checkResult{{
		Name:   "go_runtime",
		Status: statusOK,
		Detail: fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	}}

	cfg, err := config.Load(configPath)
	if err != nil {
		results = append(results, checkResult{Name: "config", Status: statusFail, Detail: err.Error()})
	} else {
		detail := "defaults"
		if configPath != "" {
			detail = configPath
		}
		results = append(results, checkResult{Name: "config", Status: statusOK, Detail: detail})
		results = append(results,
			checkCore(ctx, cfg.Core),
			checkStore(ctx, cfg.Store),
			checkKV(ctx, cfg.KV),
			checkKeyStore(cfg.KeyStore),
			checkTelemetry(cfg),
		)
	}

	failed := false
	for _, r := range results {
		if r.Status == statusFail {
			failed = true
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(results)
	} else {
		printDoctor(stdout, results)
	}

	if failed {
		return 1
	}
	return 0
}

func checkCore(ctx context.Context, cfg config.CoreConfig) checkResult {
	r := checkResult{Name: "core"}
	if cfg.Path == "" {
		r.Status, r.Detail = statusWarn, "core.path not set; pass --core to run"
		return r
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		r.Status, r.Detail = statusFail, err.Error()
		return r
	}
	_, closeCore, err := openCore(ctx, cfg)
	if err != nil {
		r.Status, r.Detail = statusFail, err.Error()
		return r
	}
	_ = closeCore(ctx)
	r.Status, r.Detail = statusOK, cfg.Path
	return r
}

func checkStore(ctx context.Context, cfg objectstore.Config) checkResult {
	r := checkResult{Name: "store"}
	s, closeStore, err := objectstore.Open(ctx, cfg)
	if err != nil {
		r.Status, r.Detail = statusFail, err.Error()
		return r
	}
	defer func() { _ = closeStore() }()
	if _, err := s.List(ctx, "doctor"); err != nil {
		r.Status, r.Detail = statusFail, err.Error()
		return r
	}
	typ := string(cfg.Type)
	if typ == "" {
		typ = string(objectstore.TypeSQLite)
	}
	r.Status, r.Detail = statusOK, typ
	return r
}

func checkKV(ctx context.Context, cfg kv.Config) checkResult {
	r := checkResult{Name: "kv"}
	s, closeKV, err := kv.Open(ctx, cfg)
	if err != nil {
		r.Status, r.Detail = statusFail, err.Error()
		return r
	}
	defer func() { _ = closeKV() }()
	if _, err := s.Exists(ctx, "doctor"); err != nil {
		r.Status, r.Detail = statusFail, err.Error()
		return r
	}
	typ := cfg.Type
	if typ == "" {
		typ = kv.TypeMemory
	}
	r.Status, r.Detail = statusOK, typ
	return r
}

func checkKeyStore(cfg config.KeyStoreConfig) checkResult {
	r := checkResult{Name: "keystore"}
	key, err := cfg.Key()
	switch {
	case err != nil:
		r.Status, r.Detail = statusFail, err.Error()
	case key == nil:
		r.Status, r.Detail = statusWarn, "no master key; KeyStore requests will fail"
	default:
		r.Status, r.Detail = statusOK, "master key configured"
	}
	return r
}

func checkTelemetry(cfg *config.Config) checkResult {
	r := checkResult{Name: "telemetry", Status: statusOK}
	if !cfg.Telemetry.Enabled {
		r.Detail = "disabled"
		return r
	}
	if cfg.Telemetry.OTLPEndpoint == "" {
		r.Status, r.Detail = statusWarn, "enabled without an OTLP endpoint"
		return r
	}
	r.Detail = cfg.Telemetry.OTLPEndpoint
	return r
}

func printDoctor(w io.Writer, results []checkResult) {
	_, _ = fmt.Fprintf(w, "\n%sDoctor%s\n\n", ColorBold+ColorBlue, ColorReset)
	for _, r := range results {
		icon, color := "✓", ColorGreen
		switch r.Status {
		case statusWarn:
			icon, color = "!", ColorYellow
		case statusFail:
			icon, color = "✗", ColorRed
		}
		_, _ = fmt.Fprintf(w, "  %s%s%s %-12s %s%s%s\n", color, icon, ColorReset, r.Name, ColorGray, r.Detail, ColorReset)
	}
	_, _ = fmt.Fprintln(w)
}
