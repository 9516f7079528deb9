package extractor

import (
	"regexp"
	"strings"
)

// Platform identifies the content platform a landing page belongs to
type Platform string

const (
	PlatformXiaohongshu Platform = "xiaohongshu"
	PlatformDouyin      Platform = "douyin"
	PlatformUnknown     Platform = "unknown"
)

// ParsePlatform maps a configured name to a Platform, defaulting to unknown
func ParsePlatform(name string) Platform {
	switch Platform(strings.ToLower(strings.TrimSpace(name))) {
	case PlatformXiaohongshu, "xhs", "rednote":
		return PlatformXiaohongshu
	case PlatformDouyin, "dy":
		return PlatformDouyin
	}
	return PlatformUnknown
}

// ResolvedLink is a located short link together with where it ended up
type ResolvedLink struct {
	ShortURL   string   `json:"short_url"`
	LandingURL string   `json:"landing_url"`
	Platform   Platform `json:"platform"`
}

// MediaCandidate is a media URL with its watermark classification
type MediaCandidate struct {
	URL         string `json:"url"`
	Watermarked bool   `json:"watermarked"`
	// Variant is the de-watermarked form, empty when the URL carries no
	// processing suffix
	Variant string `json:"variant,omitempty"`
}

// SelectionResult holds the chosen media URL and the two finalists.
// Empty strings mean "none".
type SelectionResult struct {
	Chosen        string `json:"chosen"`
	Unwatermarked string `json:"unwatermarked,omitempty"`
	Watermarked   string `json:"watermarked,omitempty"`
}

// Outcome is the result of one pipeline run
type Outcome struct {
	ImageURL  string          `json:"image_url"`
	AllImages []string        `json:"all_images"`
	NoteID    string          `json:"note_id,omitempty"`
	TargetURL string          `json:"target_url"`
	Platform  Platform        `json:"platform"`
	Selection SelectionResult `json:"selection"`
}

var (
	filenameURLRegex   = regexp.MustCompile(`https?://[^\s]+`)
	filenameSpaceRegex = regexp.MustCompile(`\s+`)
)

// SanitizeFilename removes or replaces characters that are invalid in filenames
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"／", "-",
		"＼", "-",
		"：", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
		"＊", "",
		"？", "",
		"＜", "",
		"＞", "",
		"｜", "",
		"\n", " ",
		"\t", " ",
		"\r", "",
	)
	result := filenameURLRegex.ReplaceAllString(name, "")
	result = replacer.Replace(result)

	result = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, result)

	result = filenameSpaceRegex.ReplaceAllString(result, " ")
	result = strings.TrimSpace(result)
	result = strings.Trim(result, ". ")

	// 60 runes keeps CJK names well under the usual 255 byte limit
	const maxRunes = 60
	if runes := []rune(result); len(runes) > maxRunes {
		result = strings.TrimSpace(string(runes[:maxRunes]))
	}
	return result
}
