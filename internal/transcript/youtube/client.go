// Package youtube implements transcript.Service against YouTube's public
// watch page, Innertube player endpoint and timedtext captions.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/anatolykoptev/go_recipe/internal/engine"
	"github.com/anatolykoptev/go_recipe/internal/transcript"
)

// errCaptionGone marks a timedtext URL that answered 404/410 for a video the
// player reported as playable.
var errCaptionGone = errors.New("caption track gone")

// doFunc performs one HTTP exchange and returns body and status.
type doFunc func(ctx context.Context, method, rawURL string, headers map[string]string, body []byte) ([]byte, int, error)

// Client fetches transcripts from YouTube. It holds no per-request state and
// is safe for concurrent use.
type Client struct {
	baseURL string
	timeout time.Duration
	do      doFunc
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient routes requests through hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.do = httpDo(hc) }
}

// WithBrowserClient routes requests through a Chrome-fingerprinted stealth client.
func WithBrowserClient(bc *engine.BrowserClient) Option {
	return func(c *Client) {
		if bc != nil {
			c.do = browserDo(bc)
		}
	}
}

// WithBaseURL overrides https://www.youtube.com.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout bounds one whole Fetch (watch page, player and timedtext).
// Zero leaves the deadline to the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New returns a Client using http.DefaultClient unless overridden.
func New(opts ...Option) *Client {
	c := &Client{baseURL: defaultBaseURL, do: httpDo(http.DefaultClient)}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ transcript.Service = (*Client)(nil)

// Fetch returns the first available transcript among languages.
//
// Steps: watch page → ytInitialPlayerResponse (ANDROID /player when the page
// has none) → playability check → track selection → timedtext XML.
func (c *Client) Fetch(ctx context.Context, videoID string, languages []string) (*transcript.Transcript, error) {
	if strings.Contains(videoID, "://") || strings.Contains(videoID, "youtube.com/") || strings.Contains(videoID, "youtu.be/") {
		return nil, &transcript.VideoUnavailableError{
			VideoID: videoID,
			Reason:  "looks like a URL; pass the bare video id",
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	player, err := c.playerResponse(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if err := checkPlayability(videoID, player); err != nil {
		return nil, err
	}

	tracks := player.tracks()
	if len(tracks) == 0 {
		return nil, &transcript.NotFoundError{VideoID: videoID, Requested: languages}
	}

	track, ok := selectTrack(tracks, languages)
	if !ok {
		if onlyGated(tracks, languages) {
			return nil, &transcript.TransientError{
				VideoID: videoID,
				Op:      "timedtext",
				Err:     errors.New("every matching caption track requires a PoToken"),
			}
		}
		return nil, &transcript.NotFoundError{
			VideoID:   videoID,
			Requested: languages,
			Available: availableLanguages(tracks),
		}
	}

	segs, err := c.fetchTimedText(ctx, videoID, track.BaseURL)
	if errors.Is(err, errCaptionGone) {
		return nil, &transcript.NotFoundError{
			VideoID:   videoID,
			Requested: languages,
			Available: availableLanguages(tracks),
		}
	}
	if err != nil {
		return nil, err
	}
	slog.Debug("youtube: transcript fetched",
		slog.String("id", videoID),
		slog.String("lang", track.LanguageCode),
		slog.String("kind", track.Kind),
		slog.Int("segments", len(segs)))

	return &transcript.Transcript{
		VideoID:      videoID,
		Language:     track.Name.String(),
		LanguageCode: track.LanguageCode,
		IsGenerated:  isGenerated(track),
		Segments:     segs,
	}, nil
}

// playerResponse loads the player JSON from the watch page, falling back to
// the ANDROID Innertube /player endpoint when the page carries none.
func (c *Client) playerResponse(ctx context.Context, videoID string) (*playerResp, error) {
	watchURL := c.baseURL + "/watch?v=" + url.QueryEscape(videoID)
	headers := make(map[string]string)
	for k, v := range engine.ChromeHeaders() {
		headers[k] = v
	}
	headers["User-Agent"] = engine.RandomUserAgent()
	headers["Accept-Language"] = "en-US,en;q=0.9"
	headers["Cookie"] = "CONSENT=YES+cb; SOCS=CAI"
	body, err := c.get(ctx, videoID, "watch page", watchURL, headers)
	if err != nil {
		return nil, err
	}
	if bytes.Contains(body, []byte(`class="g-recaptcha"`)) {
		return nil, &transcript.TransientError{
			VideoID: videoID,
			Op:      "watch page",
			Err:     errors.New("request blocked by captcha"),
		}
	}

	if raw := extractPlayerResponse(body); raw != nil {
		var p playerResp
		if err := json.Unmarshal(raw, &p); err == nil {
			return &p, nil
		}
		slog.Warn("youtube: undecodable ytInitialPlayerResponse, trying player", slog.String("id", videoID))
	}
	return c.androidPlayer(ctx, videoID)
}

func (c *Client) androidPlayer(ctx context.Context, videoID string) (*playerResp, error) {
	reqBody, err := json.Marshal(androidPlayerReq(videoID))
	if err != nil {
		return nil, err
	}
	body, status, err := c.send(ctx, http.MethodPost, c.baseURL+playerPath+"?prettyPrint=false", map[string]string{
		"Content-Type":             "application/json",
		"User-Agent":               ytAndroidUA,
		"X-Youtube-Client-Name":    "3",
		"X-Youtube-Client-Version": ytAndroidVersion,
	}, reqBody)
	if err != nil {
		return nil, transportErr(videoID, "android player", err)
	}
	if err := statusErr(videoID, "android player", status); err != nil {
		return nil, err
	}
	var p playerResp
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &transcript.TransientError{VideoID: videoID, Op: "android player", Err: fmt.Errorf("decode player: %w", err)}
	}
	return &p, nil
}

// fetchTimedText downloads and parses one caption track. The video already
// resolved, so a missing track is errCaptionGone rather than an unavailable video.
func (c *Client) fetchTimedText(ctx context.Context, videoID, baseURL string) ([]transcript.Segment, error) {
	body, status, err := c.send(ctx, http.MethodGet, timedTextURL(baseURL), map[string]string{
		"User-Agent":      engine.RandomUserAgent(),
		"Accept-Language": "en-US,en;q=0.9",
	}, nil)
	if err != nil {
		return nil, transportErr(videoID, "timedtext", err)
	}
	switch {
	case status == http.StatusNotFound, status == http.StatusGone:
		return nil, errCaptionGone
	case status != http.StatusOK:
		return nil, &transcript.TransientError{VideoID: videoID, Op: "timedtext", StatusCode: status}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	segs, err := parseTimedText(body)
	if err != nil {
		return nil, &transcript.TransientError{VideoID: videoID, Op: "timedtext", Err: err}
	}
	return segs, nil
}

// get issues a GET and maps transport and status failures onto the
// transcript error taxonomy.
func (c *Client) get(ctx context.Context, videoID, op, rawURL string, headers map[string]string) ([]byte, error) {
	body, status, err := c.send(ctx, http.MethodGet, rawURL, headers, nil)
	if err != nil {
		return nil, transportErr(videoID, op, err)
	}
	if err := statusErr(videoID, op, status); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) send(ctx context.Context, method, rawURL string, headers map[string]string, body []byte) ([]byte, int, error) {
	engine.IncrYouTubeHTTPRequests()
	return c.do(ctx, method, rawURL, headers, body)
}

// checkPlayability maps a non-OK playabilityStatus onto VideoUnavailableError.
// Bot checks ("Sign in to confirm you're not a bot") are transient: the same
// id works from another IP.
func checkPlayability(videoID string, p *playerResp) error {
	if p.PlayabilityStatus == nil {
		return nil
	}
	status, reason := p.PlayabilityStatus.Status, p.PlayabilityStatus.Reason
	switch status {
	case "", "OK":
		return nil
	case "LOGIN_REQUIRED":
		if strings.Contains(strings.ToLower(reason), "not a bot") {
			return &transcript.TransientError{VideoID: videoID, Op: "player", Err: errors.New(reason)}
		}
	}
	if reason == "" {
		reason = strings.ToLower(status)
	}
	return &transcript.VideoUnavailableError{VideoID: videoID, Reason: reason}
}

func transportErr(videoID, op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &transcript.TransientError{VideoID: videoID, Op: op, Err: err}
}

// statusErr maps the status of a video-level request (watch page, player).
// Caption downloads map their own status in fetchTimedText.
func statusErr(videoID, op string, status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case engine.IsRetryableStatus(status):
		return &transcript.TransientError{VideoID: videoID, Op: op, StatusCode: status}
	case status == http.StatusNotFound, status == http.StatusGone, status == http.StatusBadRequest:
		return &transcript.VideoUnavailableError{VideoID: videoID, Reason: http.StatusText(status)}
	default:
		return &transcript.TransientError{VideoID: videoID, Op: op, StatusCode: status}
	}
}

// extractPlayerResponse finds the ytInitialPlayerResponse JSON object inside
// the watch page's script elements.
func extractPlayerResponse(page []byte) []byte {
	z := html.NewTokenizer(bytes.NewReader(page))
	inScript := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return nil
		case html.StartTagToken:
			name, _ := z.TagName()
			inScript = string(name) == "script"
		case html.EndTagToken:
			inScript = false
		case html.TextToken:
			if !inScript {
				continue
			}
			text := z.Text()
			idx := bytes.Index(text, []byte(ytInitialPlayerResponseMarker))
			if idx < 0 {
				continue
			}
			if obj := extractJSONObject(text[idx+len(ytInitialPlayerResponseMarker):]); obj != nil {
				return obj
			}
		}
	}
}

// extractJSONObject returns the leading balanced {...} object of b.
func extractJSONObject(b []byte) []byte {
	b = bytes.TrimLeft(b, " \t\r\n")
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr, escaped := false, false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}

func httpDo(hc *http.Client) doFunc {
	if hc == nil {
		hc = http.DefaultClient
	}
	return func(ctx context.Context, method, rawURL string, headers map[string]string, body []byte) ([]byte, int, error) {
		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, rdr)
		if err != nil {
			return nil, 0, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := hc.Do(req)
		if err != nil {
			return nil, 0, err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
		if err != nil {
			return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
		}
		return data, resp.StatusCode, nil
	}
}

func browserDo(bc *engine.BrowserClient) doFunc {
	return func(ctx context.Context, method, rawURL string, headers map[string]string, body []byte) ([]byte, int, error) {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		return doAsync(ctx, func() ([]byte, int, error) {
			data, _, status, err := bc.Do(method, rawURL, headers, rdr)
			return data, status, err
		})
	}
}

// doAsync runs fn and returns its result, or ctx.Err() as soon as ctx is done.
// The stealth client takes no context, so the exchange is abandoned rather
// than aborted.
func doAsync(ctx context.Context, fn func() ([]byte, int, error)) ([]byte, int, error) {
	type result struct {
		data   []byte
		status int
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		data, status, err := fn()
		ch <- result{data, status, err}
	}()
	select {
	case r := <-ch:
		return r.data, r.status, r.err
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
}
