// go_recipe: YouTube transcript and recipe MCP server.
//
// Exposes two MCP tools: youtube_transcript and recipe_from_youtube.
// `go_recipe run` performs a single recipe crew run and prints the result.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_recipe/internal/crew"
	"github.com/anatolykoptev/go_recipe/internal/engine"
	"github.com/anatolykoptev/go_recipe/internal/recipeserver"
	"github.com/anatolykoptev/go_recipe/internal/toolreg"
	"github.com/anatolykoptev/go_recipe/internal/transcript"
	"github.com/anatolykoptev/go_recipe/internal/transcript/youtube"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8893")
)

// Inputs of the one-shot `run` command.
var runInputs = crew.Inputs{
	VideoID:   "E2L3bQKow3U",
	Languages: []string{"fr", "en", "it"},
}

func main() {
	cfg := loadConfig()
	deps, err := buildDeps(cfg)
	if err != nil {
		slog.Error("init failed", slog.Any("error", err))
		os.Exit(1)
	}

	if len(os.Args) > 1 && os.Args[1] == "run" {
		os.Exit(runOnce(deps.Crew))
	}

	slog.Info("starting go_recipe", slog.String("port", mcpPort))

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_recipe",
		Version: version,
	}, nil)

	n := recipeserver.RegisterTools(server, deps)
	slog.Info("tools registered", slog.Int("count", n))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_recipe",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func loadConfig() engine.Config {
	cfg := engine.Config{
		LLMAPIKey:          env.Str("OPENAI_API_KEY", ""),
		LLMAPIKeyFallbacks: env.List("OPENAI_API_KEY_FALLBACKS", ""),
		LLMAPIBase:         env.Str("OPENAI_API_BASE_URL", engine.DefaultLLMAPIBase),
		LLMModel:           env.Str("MODEL_NAME", engine.DefaultLLMModel),
		LLMTemperature:     env.Float("LLM_TEMPERATURE", engine.DefaultLLMTemperature),
		LLMMaxTokens:       env.Int("LLM_MAX_TOKENS", engine.DefaultLLMMaxTokens),
		MaxRPM:             env.Int("LLM_MAX_RPM", 0),
		FetchTimeout:       env.Duration("FETCH_TIMEOUT", engine.DefaultFetchTimeout),
		WebshareAPIKey:     env.Str("WEBSHARE_API_KEY", ""),
	}
	cfg = cfg.WithDefaults()

	bc, err := engine.NewBrowserClient(cfg)
	if err != nil {
		slog.Warn("stealth client init failed, using net/http", slog.Any("error", err))
	} else {
		cfg.BrowserClient = bc
		slog.Info("stealth browser client initialized")
	}
	return cfg
}

// buildDeps wires adapter → tool → registry → crew. The crew is left nil
// when no LLM key is configured so the transcript tool can still be served.
func buildDeps(cfg engine.Config) (recipeserver.Deps, error) {
	yt := youtube.New(
		youtube.WithHTTPClient(cfg.HTTPClient),
		youtube.WithBrowserClient(cfg.BrowserClient),
		youtube.WithTimeout(cfg.FetchTimeout),
	)
	tool := transcript.NewTool(yt)
	deps := recipeserver.Deps{Transcripts: tool}

	if err := cfg.Validate(); err != nil {
		slog.Warn("recipe crew disabled", slog.Any("error", err))
		return deps, nil
	}

	regTool, err := toolreg.New(transcript.ToolName, transcript.ToolDescription, tool.Fetch)
	if err != nil {
		return deps, fmt.Errorf("transcript tool: %w", err)
	}
	reg, err := toolreg.NewRegistry(regTool)
	if err != nil {
		return deps, fmt.Errorf("tool registry: %w", err)
	}
	c, err := crew.New(engine.NewLLM(cfg), reg, crew.WithMaxRPM(cfg.MaxRPM))
	if err != nil {
		return deps, fmt.Errorf("crew: %w", err)
	}
	deps.Crew = c
	return deps, nil
}

func runOnce(c *crew.Crew) int {
	if c == nil {
		fmt.Fprintln(os.Stderr, engine.ErrMissingAPIKey)
		return 1
	}
	res, err := c.Kickoff(context.Background(), runInputs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if res.Recipe != nil {
		fmt.Println(res.Recipe.Markdown())
	} else {
		fmt.Println(res.Final)
	}
	return 0
}
