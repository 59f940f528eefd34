package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures all tunable settings for the WinUI MCP server.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Automation AutomationConfig `yaml:"automation"`
	MCP        MCPConfig        `yaml:"mcp"`
	Facts      FactsConfig      `yaml:"facts"`
	WebView    WebViewConfig    `yaml:"webview"`
}

type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	LogFile string `yaml:"log_file"`
}

// AutomationConfig tunes window acquisition and action dispatch.
type AutomationConfig struct {
	// How long to poll for a newly spawned window (e.g., "10s").
	LaunchTimeout string `yaml:"launch_timeout"`
	// How long to wait for a freshly started process to settle (e.g., "5s").
	IdleWait string `yaml:"idle_wait"`
	// Interval between window-enumeration polls (e.g., "500ms").
	PollInterval string `yaml:"poll_interval"`
	// Pause after focusing an element before injecting keystrokes (e.g., "150ms").
	FocusSettle string `yaml:"focus_settle"`
	// Process names never picked by fuzzy window matching. Overrides the
	// built-in denylist of shells, editors, and IDE hosts when non-empty.
	HostDenylist []string `yaml:"host_denylist"`
	// Directory for screenshot captures.
	ScreenshotDir string `yaml:"screenshot_dir"`
	// Directory for rotating action-trace files.
	TraceDir string `yaml:"trace_dir"`
}

type MCPConfig struct {
	// When set, starts an SSE server on this port instead of stdio-only.
	SSEPort int `yaml:"sse_port"`
}

// FactsConfig controls the embedded deductive engine.
type FactsConfig struct {
	Enable          bool   `yaml:"enable"`
	SchemaPath      string `yaml:"schema_path"`
	FactBufferLimit int    `yaml:"fact_buffer_limit"`
}

// WebViewConfig configures the optional WebView2 CDP bridge.
type WebViewConfig struct {
	// Gates registration of the webview-snapshot tool (default: true).
	Enabled *bool `yaml:"enabled"`
	// Default CDP endpoint when a tool call omits one (e.g., "ws://localhost:9222").
	DebuggerURL string `yaml:"debugger_url"`
	// Attach timeout (e.g., "10s").
	AttachTimeout string `yaml:"attach_timeout"`
}

// DefaultConfig provides reasonable defaults for local development.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:    "winui-mcp",
			Version: "0.2.0",
			LogFile: "winui-mcp.log",
		},
		Automation: AutomationConfig{
			LaunchTimeout: "10s",
			IdleWait:      "5s",
			PollInterval:  "500ms",
			FocusSettle:   "150ms",
			ScreenshotDir: "data/screenshots",
			TraceDir:      "data/traces",
		},
		MCP: MCPConfig{
			SSEPort: 0,
		},
		Facts: FactsConfig{
			Enable:          true,
			FactBufferLimit: 2048,
		},
		WebView: WebViewConfig{
			AttachTimeout: "10s",
		},
	}
}

// Load reads YAML config from disk and overlays defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, errors.New("config path is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate ensures required fields exist so the server can start deterministically.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name is required")
	}
	if c.Facts.FactBufferLimit < 0 {
		return errors.New("facts.fact_buffer_limit must be >= 0")
	}
	return nil
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// GetLaunchTimeout returns the parsed new-window polling deadline with a sane default.
func (a AutomationConfig) GetLaunchTimeout() time.Duration {
	return parseDurationOr(a.LaunchTimeout, 10*time.Second)
}

// GetIdleWait returns the parsed process settle deadline with a sane default.
func (a AutomationConfig) GetIdleWait() time.Duration {
	return parseDurationOr(a.IdleWait, 5*time.Second)
}

// GetPollInterval returns the parsed poll interval with a sane default.
func (a AutomationConfig) GetPollInterval() time.Duration {
	return parseDurationOr(a.PollInterval, 500*time.Millisecond)
}

// GetFocusSettle returns the parsed focus settle pause with a sane default.
func (a AutomationConfig) GetFocusSettle() time.Duration {
	return parseDurationOr(a.FocusSettle, 150*time.Millisecond)
}

// GetAttachTimeout returns the parsed CDP attach timeout with a sane default.
func (w WebViewConfig) GetAttachTimeout() time.Duration {
	return parseDurationOr(w.AttachTimeout, 10*time.Second)
}

// IsEnabled reports whether the webview bridge should be registered (default: true).
func (w WebViewConfig) IsEnabled() bool {
	if w.Enabled == nil {
		return true
	}
	return *w.Enabled
}
