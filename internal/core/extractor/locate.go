package extractor

import (
	"regexp"
	"strings"
)

// urlStop is the set of characters that end a URL in share text: whitespace,
// quotes, CJK ideographs and full-width punctuation
const urlStop = `\s"'<>\x{4e00}-\x{9fa5}，。！？；：“”‘’（）【】《》、`

var genericURLPattern = regexp.MustCompile(`https?://[^` + urlStop + `]+`)

// trailingPunct is trimmed from a match; share text often ends a link with it
const trailingPunct = `.,;:!?)]}`

type locator struct {
	shortLink *regexp.Regexp
}

func newLocator(shortHosts []string) *locator {
	l := &locator{}
	if len(shortHosts) == 0 {
		return l
	}
	quoted := make([]string, len(shortHosts))
	for i, h := range shortHosts {
		quoted[i] = regexp.QuoteMeta(h)
	}
	l.shortLink = regexp.MustCompile(`(?i)https?://(?:` + strings.Join(quoted, "|") + `)/[^` + urlStop + `]+`)
	return l
}

func (l *locator) locate(text string) (string, bool) {
	if l.shortLink != nil {
		if m := l.shortLink.FindString(text); m != "" {
			if m = strings.TrimRight(m, trailingPunct); m != "" {
				return m, true
			}
		}
	}
	for _, m := range genericURLPattern.FindAllString(text, -1) {
		m = strings.TrimRight(m, trailingPunct)
		if i := strings.Index(m, "://"); i >= 0 && i+3 < len(m) {
			return m, true
		}
	}
	return "", false
}

// Locate finds the first URL in free share text. Platform short links win
// over any other URL. Not finding one is a normal outcome.
func (r *Registry) Locate(text string) (string, bool) {
	r.mu.RLock()
	l := r.locator
	r.mu.RUnlock()
	if l == nil {
		l = newLocator(r.shortLinkHosts())
		r.mu.Lock()
		r.locator = l
		r.mu.Unlock()
	}
	return l.locate(text)
}
