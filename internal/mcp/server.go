package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"winui-mcp-server/internal/config"
	"winui-mcp-server/internal/facts"
	"winui-mcp-server/internal/recorder"
	"winui-mcp-server/internal/screenshot"
	"winui-mcp-server/internal/uia"
	"winui-mcp-server/internal/webview"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Server wires the MCP runtime, the automation driver, and the fact engine.
type Server struct {
	cfg       config.Config
	driver    *uia.Driver
	engine    *facts.Engine
	bridge    *webview.Bridge
	shots     *screenshot.Store
	rec       *recorder.Recorder
	tools     map[string]Tool
	mcpServer *mcpserver.MCPServer
}

// Tool describes the contract for MCP tool implementations.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// NewServer constructs the WinUI MCP server and registers all tools.
func NewServer(cfg config.Config, driver *uia.Driver, engine *facts.Engine, shots *screenshot.Store, rec *recorder.Recorder) (*Server, error) {
	mcpSrv := mcpserver.NewMCPServer(
		cfg.Server.Name,
		cfg.Server.Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithLogging(),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
	)

	server := &Server{
		cfg:       cfg,
		driver:    driver,
		engine:    engine,
		shots:     shots,
		rec:       rec,
		tools:     make(map[string]Tool),
		mcpServer: mcpSrv,
	}

	if cfg.WebView.IsEnabled() {
		server.bridge = webview.NewBridge(cfg.WebView)
	}

	server.registerAllTools()
	return server, nil
}

// Start launches the stdio server (Claude/Gemini CLI default).
func (s *Server) Start(ctx context.Context) error {
	stdio := mcpserver.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// StartSSE hosts the server over HTTP using SSE endpoints with graceful shutdown.
func (s *Server) StartSSE(ctx context.Context, port int) error {
	sseServer := mcpserver.NewSSEServer(s.mcpServer, mcpserver.WithBaseURL("http://localhost:"+strconv.Itoa(port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Printf("SSE server shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// ExecuteTool executes a tool directly (used by demos/tests).
func (s *Server) ExecuteTool(name string, args map[string]interface{}) (interface{}, error) {
	tool, exists := s.tools[name]
	if !exists {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return tool.Execute(context.Background(), args)
}

func (s *Server) registerAllTools() {
	// Window management
	s.registerTool(&LaunchAppTool{driver: s.driver})
	s.registerTool(&AttachWindowTool{driver: s.driver})
	s.registerTool(&CloseWindowTool{driver: s.driver})
	s.registerTool(&ListWindowsTool{driver: s.driver})

	// Tree inspection
	s.registerTool(&SnapshotTool{driver: s.driver})

	// Actions
	s.registerTool(&ActivateTool{driver: s.driver})
	s.registerTool(&AppendTextTool{driver: s.driver})
	s.registerTool(&ReplaceTextTool{driver: s.driver})
	s.registerTool(&ScrollTool{driver: s.driver})

	// Fact operations
	if s.engine != nil {
		s.registerTool(&ReadFactsTool{engine: s.engine})
		s.registerTool(&QueryFactsTool{engine: s.engine})
		s.registerTool(&SubmitRuleTool{engine: s.engine})
	}

	// Pixels
	if s.shots != nil {
		s.registerTool(&ScreenshotTool{driver: s.driver, shots: s.shots})
		s.registerTool(&ScreenshotDiffTool{})
	}

	// Embedded web content
	if s.bridge != nil {
		s.registerTool(&WebViewSnapshotTool{bridge: s.bridge})
	}
}

func (s *Server) registerTool(tool Tool) {
	s.tools[tool.Name()] = tool

	schema, err := json.Marshal(tool.InputSchema())
	if err != nil {
		schema = json.RawMessage(`{"type":"object"}`)
	}

	mcpTool := mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), schema)
	s.mcpServer.AddTool(mcpTool, s.wrapTool(tool))
}

func (s *Server) wrapTool(tool Tool) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}
		s.record("tool_call", map[string]interface{}{"tool": tool.Name(), "args": args})

		result, err := tool.Execute(ctx, args)
		if err != nil {
			s.record("tool_error", map[string]interface{}{"tool": tool.Name(), "error": err.Error()})
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent(fmt.Sprintf("tool %s failed: %v", tool.Name(), err))},
				IsError: true,
			}, nil
		}

		payload := marshalToolPayload(tool.Name(), result)
		s.record("tool_result", map[string]interface{}{"tool": tool.Name(), "bytes": len(payload)})
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(string(payload))},
			IsError: false,
		}, nil
	}
}

func (s *Server) record(eventType string, data interface{}) {
	if s.rec == nil {
		return
	}
	gen := ""
	if h := s.driver.Active(); h != nil {
		gen = h.Generation
	}
	s.rec.Log(eventType, gen, data)
}

func marshalToolPayload(toolName string, result interface{}) []byte {
	payload, marshalErr := json.Marshal(result)
	if marshalErr == nil {
		return payload
	}

	fallback := map[string]interface{}{
		"success": false,
		"error":   fmt.Sprintf("tool %s returned non-serializable payload: %v", toolName, marshalErr),
	}
	payload, fallbackErr := json.Marshal(fallback)
	if fallbackErr == nil {
		return payload
	}

	return []byte(fmt.Sprintf(`{"success":false,"error":"tool %s failed to encode payload"}`, toolName))
}
