package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"devguard/internal/core/app"
	"devguard/internal/core/config"
	"devguard/internal/core/ports"
	"devguard/internal/core/watcher"
	"devguard/internal/engine/graph"
	"devguard/internal/engine/impact"
	"devguard/internal/ingest"
	"devguard/internal/shared/observability"
	"devguard/internal/ui/report"
)

var (
	configPath = flag.String("config", "./devguard.toml", "Path to config file")
	once       = flag.Bool("once", false, "Run single analysis and exit")
	ui         = flag.Bool("ui", false, "Enable terminal UI mode")
	impactArg  = flag.String("impact", "", "Simulate change impact for a node name or id")
	changeKind = flag.String("change", "Remove", "Change kind for -impact: Rename, Remove, SignatureChange")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("devguard v%s\n", VERSION)
		os.Exit(0)
	}

	setupLogging()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if os.IsNotExist(err) && *configPath == "./devguard.toml" {
			cfg = config.Default()
		} else {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	root := "."
	if flag.NArg() > 0 {
		root = flag.Arg(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.OTLPEndpoint != "" {
		shutdown, err := observability.SetupTracing(ctx, cfg.Telemetry.OTLPEndpoint, VERSION)
		if err != nil {
			slog.Error("failed to set up tracing", "error", err)
			os.Exit(1)
		}
		defer func() { _ = shutdown(context.Background()) }()
	}
	if cfg.Telemetry.MetricsAddr != "" {
		go serveMetrics(cfg.Telemetry.MetricsAddr)
	}

	engine, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer engine.Close()
	svc := engine.AnalysisService()

	docs, err := ingest.ScanDir(root, cfg.Extract.ExcludeDirs)
	if err != nil {
		slog.Error("scan failed", "path", root, "error", err)
		os.Exit(1)
	}
	info, err := svc.Ingest(ctx, ingest.NewBatch(docs))
	if err != nil {
		slog.Error("ingestion failed", "error", err)
		os.Exit(1)
	}

	if *impactArg != "" {
		if err := runImpact(ctx, svc, *impactArg, *changeKind); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		os.Exit(0)
	}

	rep, err := svc.RunIntegrity(ctx)
	if err != nil {
		slog.Error("integrity analysis failed", "error", err)
		os.Exit(1)
	}
	if written, err := engine.SyncOutputs(ctx, rep); err != nil {
		slog.Error("failed to write outputs", "error", err)
	} else if len(written) > 0 {
		slog.Info("wrote outputs", "paths", written)
	}

	if !*ui {
		fmt.Printf("snapshot v%d: %d nodes, %d edges, %d findings, coverage %.0f%%\n",
			info.Version, info.NodeCount, info.EdgeCount, len(rep.Findings), info.Coverage*100)
		fmt.Print(report.RenderFindings(rep))
	}

	if *once {
		os.Exit(0)
	}

	runWatch(ctx, engine, svc, cfg, root, *ui)
}

func runWatch(ctx context.Context, engine *app.App, svc ports.AnalysisService, cfg *config.Config, root string, withUI bool) {
	var program *tea.Program
	if withUI {
		program = tea.NewProgram(initialModel(), tea.WithAltScreen())
	}

	w, err := watcher.New(svc, watcher.Options{
		Root:                 root,
		ExcludeDirs:          cfg.Extract.ExcludeDirs,
		Debounce:             cfg.Watch.Debounce,
		MaxRebuildsPerMinute: cfg.Watch.MaxRebuildsPerMinute,
		OnSnapshot: func(info ports.SnapshotInfo) {
			rep, err := svc.RunIntegrity(ctx)
			if err != nil {
				slog.Error("integrity analysis failed", "error", err)
				return
			}
			if _, err := engine.SyncOutputs(ctx, rep); err != nil {
				slog.Error("failed to write outputs", "error", err)
			}
			if program != nil {
				program.Send(updateMsg{findings: rep.Findings, info: info})
			} else {
				slog.Info("rebuilt", "version", info.Version, "findings", len(rep.Findings))
			}
		},
	})
	if err != nil {
		slog.Error("failed to create watcher", "error", err)
		os.Exit(1)
	}
	defer w.Close()

	if err := w.Start(ctx); err != nil {
		slog.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}

	if program != nil {
		if _, err := program.Run(); err != nil {
			slog.Error("failed to run UI", "error", err)
			os.Exit(1)
		}
		return
	}
	<-ctx.Done()
}

func runImpact(ctx context.Context, svc ports.AnalysisService, target, kind string) error {
	doc, err := svc.GraphExport(ctx)
	if err != nil {
		return err
	}

	id, name := "", target
	for _, n := range doc.Nodes {
		if n.ID == target || n.Name == target {
			id, name = n.ID, n.Name
			break
		}
	}
	if id == "" {
		return fmt.Errorf("no node named %q in the current snapshot", target)
	}

	res, err := svc.SimulateChange(ctx, impact.ChangeSpec{
		TargetID: graph.NodeID(id),
		Kind:     impact.ChangeKind(kind),
	})
	if err != nil {
		return err
	}
	fmt.Print(report.RenderImpact(res, name))
	return nil
}

func setupLogging() {
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}

	output := os.Stdout
	if *ui {
		// In UI mode, avoid stdout logs corrupting the TUI.
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600); err == nil {
			output = f
		} else {
			fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
		}
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: logLevel,
	})))
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "devguard", "devguard.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "devguard", "devguard.log")
	}

	return "devguard.log"
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server stopped", "addr", addr, "error", err)
	}
}
