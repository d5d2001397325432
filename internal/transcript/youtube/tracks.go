package youtube

import (
	"strings"
)

// needsPoToken reports whether a caption track URL requires a PoToken (browser-only).
// Tracks with &exp=xpe cannot be fetched server-side.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

func isGenerated(t captionTrack) bool { return t.Kind == "asr" }

// selectTrack picks the first usable track matching langs in priority order.
// For each language a manually created track wins over an auto-generated one.
// Tracks that need a PoToken are skipped. Only exact language codes match;
// there is no fallback to other languages.
func selectTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	for _, lang := range langs {
		for _, generated := range []bool{false, true} {
			for _, t := range tracks {
				if t.LanguageCode == lang && isGenerated(t) == generated && !needsPoToken(t.BaseURL) {
					return t, true
				}
			}
		}
	}
	return captionTrack{}, false
}

// onlyGated reports whether langs match at least one track and every
// matching track needs a PoToken.
func onlyGated(tracks []captionTrack, langs []string) bool {
	matched := false
	for _, lang := range langs {
		for _, t := range tracks {
			if t.LanguageCode != lang {
				continue
			}
			if !needsPoToken(t.BaseURL) {
				return false
			}
			matched = true
		}
	}
	return matched
}

// availableLanguages lists the distinct language codes of tracks, in order.
func availableLanguages(tracks []captionTrack) []string {
	seen := make(map[string]bool, len(tracks))
	out := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if seen[t.LanguageCode] {
			continue
		}
		seen[t.LanguageCode] = true
		out = append(out, t.LanguageCode)
	}
	return out
}

// timedTextURL strips any format override so the endpoint returns the
// classic <transcript><text start dur> XML.
func timedTextURL(baseURL string) string {
	for _, f := range []string{"&fmt=srv3", "&fmt=json3", "&fmt=vtt"} {
		baseURL = strings.ReplaceAll(baseURL, f, "")
	}
	return baseURL
}
