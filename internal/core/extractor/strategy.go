package extractor

import (
	"github.com/tidwall/gjson"
)

// page is landing-page markup whose state marker text is looked up at most
// once, however many strategies ask for it
type page struct {
	markup    string
	stateRaw  string
	stateDone bool
}

func (pg *page) stateText(p *Profile) string {
	if !pg.stateDone {
		pg.stateRaw = findStateText(p, pg.markup)
		pg.stateDone = true
	}
	return pg.stateRaw
}

// markupStrategy extracts candidate media URLs from landing-page markup.
// Results are already filtered to the platform's media URLs.
type markupStrategy struct {
	name string
	run  func(p *Profile, pg *page) []string
}

// defaultStrategies run in order; the first non-empty result wins
var defaultStrategies = []markupStrategy{
	{name: "state", run: stateStrategy},
	{name: "loose", run: looseStrategy},
	{name: "pattern", run: patternStrategy},
}

func stateStrategy(p *Profile, pg *page) []string {
	return FilterMedia(p, stateURLs(p, pg.stateText(p)))
}

// looseStrategy decodes marker text that strict parsing rejected
func looseStrategy(p *Profile, pg *page) []string {
	raw := pg.stateText(p)
	if raw == "" || isStructuredJSON(normalizeState(raw)) {
		return nil
	}
	doc, ok := LooseDecode(raw)
	if !ok {
		return nil
	}
	return FilterMedia(p, collectMediaURLs(p, gjson.Parse(doc)))
}

func patternStrategy(p *Profile, pg *page) []string {
	return ExtractPatterns(p, pg.markup)
}

// firstNonEmpty runs strategies in order and stops at the first that finds
// anything. It also reports which strategy that was.
func firstNonEmpty(strategies []markupStrategy, p *Profile, markup string) ([]string, string) {
	pg := &page{markup: markup}
	for _, s := range strategies {
		if urls := s.run(p, pg); len(urls) > 0 {
			return urls, s.name
		}
	}
	return nil, ""
}

// dedupe removes repeated URLs keeping first-seen order
func dedupe(urls []string) []string {
	if len(urls) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
