package youtube

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/anatolykoptev/go_recipe/internal/transcript"
)

// parseTimedText decodes timedtext XML into segments in document order.
// Lines left without text once formatting tags are stripped are dropped.
func parseTimedText(body []byte) ([]transcript.Segment, error) {
	var tt ytTimedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}
	segs := make([]transcript.Segment, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		text := plainText(line.Text)
		if strings.TrimSpace(text) == "" {
			continue
		}
		segs = append(segs, transcript.Segment{
			Text:     text,
			Start:    line.Start,
			Duration: line.Dur,
		})
	}
	return segs, nil
}

// plainText strips caption formatting tags (<i>, <b>, <font>) and resolves
// HTML entities left escaped inside the XML text node.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var sb strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return sb.String()
			}
			return s
		case html.TextToken:
			sb.Write(z.Text())
		}
	}
}
