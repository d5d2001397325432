package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the service.
var metrics struct {
	TranscriptRequests  atomic.Int64
	TranscriptErrors    atomic.Int64
	YouTubeHTTPRequests atomic.Int64
	LLMCalls            atomic.Int64
	LLMErrors           atomic.Int64
	ToolCalls           atomic.Int64
	CrewRuns            atomic.Int64
	CrewFailures        atomic.Int64
}

var metricKeys = []string{
	"transcript_requests", "transcript_errors",
	"youtube_http_requests",
	"llm_calls", "llm_errors",
	"tool_calls",
	"crew_runs", "crew_failures",
}

// GetMetrics returns a snapshot of all metrics.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"transcript_requests":   metrics.TranscriptRequests.Load(),
		"transcript_errors":     metrics.TranscriptErrors.Load(),
		"youtube_http_requests": metrics.YouTubeHTTPRequests.Load(),
		"llm_calls":             metrics.LLMCalls.Load(),
		"llm_errors":            metrics.LLMErrors.Load(),
		"tool_calls":            metrics.ToolCalls.Load(),
		"crew_runs":             metrics.CrewRuns.Load(),
		"crew_failures":         metrics.CrewFailures.Load(),
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

func IncrTranscriptRequests()  { metrics.TranscriptRequests.Add(1) }
func IncrTranscriptErrors()    { metrics.TranscriptErrors.Add(1) }
func IncrYouTubeHTTPRequests() { metrics.YouTubeHTTPRequests.Add(1) }
func IncrLLMCalls()            { metrics.LLMCalls.Add(1) }
func IncrLLMErrors()           { metrics.LLMErrors.Add(1) }
func IncrToolCalls()           { metrics.ToolCalls.Add(1) }
func IncrCrewRuns()            { metrics.CrewRuns.Add(1) }
func IncrCrewFailures()        { metrics.CrewFailures.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, threshold time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > threshold {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
