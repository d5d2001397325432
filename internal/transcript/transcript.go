// Package transcript fetches a video transcript from a captioning service and
// flattens it into a single text blob for downstream agents.
package transcript

import (
	"context"
	"strings"
)

// Request is the tool input: a video and languages in preference order.
type Request struct {
	VideoID   string   `json:"video_id" jsonschema:"YouTube video ID to fetch the transcript for"`
	Languages []string `json:"languages" jsonschema:"Language codes to try for the transcript, in priority order (e.g. [fr en])"`
}

// Segment is one timestamped caption fragment. Only Text is consumed by the tool.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Transcript is the full set of segments for a video in one language.
type Transcript struct {
	VideoID      string    `json:"video_id"`
	Language     string    `json:"language"`
	LanguageCode string    `json:"language_code"`
	IsGenerated  bool      `json:"is_generated"`
	Segments     []Segment `json:"segments"`
}

// Service is the external captioning service. Fetch returns the first
// available transcript among languages, honouring their order; the
// selection algorithm belongs to the implementation.
type Service interface {
	Fetch(ctx context.Context, videoID string, languages []string) (*Transcript, error)
}

// ServiceFunc adapts a plain function to Service.
type ServiceFunc func(ctx context.Context, videoID string, languages []string) (*Transcript, error)

func (f ServiceFunc) Fetch(ctx context.Context, videoID string, languages []string) (*Transcript, error) {
	return f(ctx, videoID, languages)
}

// Join concatenates segment texts with a single space, in slice order.
func Join(segments []Segment) string {
	texts := make([]string, len(segments))
	for i, s := range segments {
		texts[i] = s.Text
	}
	return strings.Join(texts, " ")
}
