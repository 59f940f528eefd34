package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"winui-mcp-server/internal/config"
	"winui-mcp-server/internal/facts"
	mcpserver "winui-mcp-server/internal/mcp"
	"winui-mcp-server/internal/proclog"
	"winui-mcp-server/internal/recorder"
	"winui-mcp-server/internal/screenshot"
	"winui-mcp-server/internal/uia"

	"github.com/google/uuid"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the WinUI MCP config file")
	ssePort := flag.Int("sse-port", 0, "Optional SSE port override (falls back to config)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Before we can redirect logs, write to stderr as last resort
		log.Fatalf("failed to load config: %v", err)
	}

	// Redirect logging to file for stdio mode (stderr interferes with MCP protocol)
	if cfg.MCP.SSEPort == 0 && cfg.Server.LogFile != "" {
		logFile, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			log.SetOutput(logFile)
			defer logFile.Close()
		} else {
			// If we can't open log file, disable logging to avoid stderr pollution
			log.SetOutput(io.Discard)
		}
	}
	if *ssePort != 0 {
		cfg.MCP.SSEPort = *ssePort
	}

	var engine *facts.Engine
	if cfg.Facts.Enable {
		engine, err = facts.NewEngine(cfg.Facts)
		if err != nil {
			log.Fatalf("failed to initialize fact engine: %v", err)
		}
		if cfg.Facts.SchemaPath != "" {
			if err := engine.LoadSchema(cfg.Facts.SchemaPath); err != nil {
				log.Printf("fact schema not loaded: %v", err)
			}
		}
	}

	// A nil *Engine must not become a non-nil FactSink interface.
	var sink uia.FactSink
	if engine != nil {
		sink = engine
	}
	driver := uia.NewDriver(cfg.Automation, newCollaborators(engine), sink)

	shots, err := screenshot.NewStore(cfg.Automation.ScreenshotDir, platformCapturer())
	if err != nil {
		log.Fatalf("failed to prepare screenshot store: %v", err)
	}

	rec, err := recorder.NewRecorder(cfg.Automation.TraceDir)
	if err != nil {
		log.Fatalf("failed to prepare trace recorder: %v", err)
	}
	if err := rec.Start(uuid.NewString()[:8]); err != nil {
		log.Printf("action trace disabled: %v", err)
	}
	defer rec.Close()

	server, err := mcpserver.NewServer(cfg, driver, engine, shots, rec)
	if err != nil {
		log.Fatalf("failed to initialize MCP server: %v", err)
	}

	var startErr error
	if cfg.MCP.SSEPort > 0 {
		log.Printf("starting WinUI MCP SSE server on port %d", cfg.MCP.SSEPort)
		startErr = server.StartSSE(ctx, cfg.MCP.SSEPort)
	} else {
		log.Printf("starting WinUI MCP stdio server")
		startErr = server.Start(ctx)
	}

	if startErr != nil && !errors.Is(startErr, context.Canceled) {
		log.Fatalf("server exited with error: %v", startErr)
	}
}

// newCollaborators assembles the platform services. The process layer is
// exec backed everywhere so launched targets get their output tailed into
// the fact engine; the automation provider, package deployer, and screen
// capturer come from the platform wiring and stay nil where the platform
// offers none.
func newCollaborators(engine *facts.Engine) uia.Collaborators {
	var tailer *proclog.Tailer
	if engine != nil {
		tailer = proclog.NewTailer(engine)
	}
	col := uia.Collaborators{
		Process: proclog.NewExecProcessAPI(tailer),
	}
	col.Provider = platformProvider()
	col.Deploy = platformDeployer()
	col.Capture = platformCapturer()
	return col
}
