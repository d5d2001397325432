package transcript

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/anatolykoptev/go_recipe/internal/engine"
)

// Tool identity as presented to agents.
const (
	ToolName        = "youtube_transcript"
	ToolDescription = "Fetches the transcript of a YouTube video in the specified language(s). " +
		"Input: video_id (YouTube video ID) and languages (language codes to try, in order, e.g. [\"fr\", \"en\"]). " +
		"Returns the full transcript text."
)

// Tool turns (video_id, languages) into a single transcript string.
// It holds no mutable state and is safe for concurrent use.
type Tool struct {
	svc Service
}

// NewTool returns a Tool backed by svc.
func NewTool(svc Service) *Tool {
	return &Tool{svc: svc}
}

// Validate rejects requests that must never reach the network.
func (r Request) Validate() error {
	if strings.TrimSpace(r.VideoID) == "" {
		return &InvalidInputError{Field: "video_id", Reason: "must not be empty"}
	}
	if len(r.Languages) == 0 {
		return &InvalidInputError{Field: "languages", Reason: "must not be empty"}
	}
	for _, l := range r.Languages {
		if strings.TrimSpace(l) == "" {
			return &InvalidInputError{Field: "languages", Reason: "must not contain blank codes"}
		}
	}
	return nil
}

// Fetch validates req, calls the service exactly once with the full language
// list and returns the space-joined segment texts. Service errors keep their
// category; unclassified ones surface as TransientError.
func (t *Tool) Fetch(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	engine.IncrTranscriptRequests()

	tr, err := t.svc.Fetch(ctx, req.VideoID, req.Languages)
	if err != nil {
		engine.IncrTranscriptErrors()
		err = classify(req.VideoID, err)
		slog.Warn("transcript: fetch failed",
			slog.String("video_id", req.VideoID),
			slog.Any("languages", req.Languages),
			slog.Any("error", err))
		return "", err
	}

	if tr == nil || len(tr.Segments) == 0 {
		engine.IncrTranscriptErrors()
		return "", &NotFoundError{VideoID: req.VideoID, Requested: req.Languages}
	}
	if !slices.Contains(req.Languages, tr.LanguageCode) {
		engine.IncrTranscriptErrors()
		return "", &NotFoundError{
			VideoID:   req.VideoID,
			Requested: req.Languages,
			Available: []string{tr.LanguageCode},
		}
	}

	text := Join(tr.Segments)
	slog.Info("transcript: fetched",
		slog.String("video_id", req.VideoID),
		slog.String("language", tr.LanguageCode),
		slog.Bool("generated", tr.IsGenerated),
		slog.Int("segments", len(tr.Segments)),
		slog.Int("chars", len(text)))
	return text, nil
}

func classify(videoID string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrVideoUnavailable),
		errors.Is(err, ErrTransient),
		errors.Is(err, ErrInvalidInput):
		return err
	case errors.Is(err, context.Canceled):
		return err
	default:
		return &TransientError{VideoID: videoID, Op: "fetch", Err: err}
	}
}
