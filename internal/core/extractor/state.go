package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

var (
	stateSlashReplacer = strings.NewReplacer(`\u002F`, "/", `\u002f`, "/", `\/`, "/")
	// bare undefined as an object value or array element
	undefinedValue = regexp.MustCompile(`([:\[,]\s*)undefined(\s*[,\]\}])`)
)

// ExtractState reads the embedded page-state object and walks the platform's
// media paths. raw is the marker text as found, or "" when no marker was
// present; it is what the loose decoder starts from when strict parsing fails.
func ExtractState(p *Profile, markup string) (urls []string, raw string) {
	raw = findStateText(p, markup)
	return stateURLs(p, raw), raw
}

// stateURLs parses marker text found by findStateText; text the strict
// parser rejects yields nothing
func stateURLs(p *Profile, raw string) []string {
	if raw == "" {
		return nil
	}
	doc := normalizeState(raw)
	if !isStructuredJSON(doc) {
		return nil
	}
	return collectMediaURLs(p, gjson.Parse(doc))
}

// findStateText returns the payload of the first marker that is present
func findStateText(p *Profile, markup string) string {
	var doc *goquery.Document
	for _, marker := range p.StateMarkers {
		switch {
		case marker.Assign != nil:
			loc := marker.Assign.FindStringIndex(markup)
			if loc == nil {
				continue
			}
			if text := sliceStatePayload(markup[loc[1]:]); text != "" {
				return text
			}
		case marker.Selector != "":
			if doc == nil {
				var err error
				doc, err = goquery.NewDocumentFromReader(strings.NewReader(markup))
				if err != nil {
					continue
				}
			}
			if text := strings.TrimSpace(doc.Find(marker.Selector).First().Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

// sliceStatePayload cuts the assigned value out of the text following a
// marker. Objects and arrays are delimited by a string-aware bracket scan;
// anything else, or an unbalanced object, runs up to the closing script tag.
func sliceStatePayload(s string) string {
	s = strings.TrimLeft(s, " \t\r\n")
	if s == "" {
		return ""
	}
	if s[0] == '{' || s[0] == '[' {
		if end := matchBracket(s); end > 0 {
			return s[:end]
		}
	}
	end := strings.Index(s, "</script>")
	if end < 0 {
		end = len(s)
	}
	return strings.TrimRight(strings.TrimSpace(s[:end]), ";")
}

// matchBracket returns the index just past the bracket closing s[0], or -1
func matchBracket(s string) int {
	depth := 0
	var quote byte
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// normalizeState undoes the escaping pages apply to embedded state
func normalizeState(raw string) string {
	s := stateSlashReplacer.Replace(raw)
	// twice so adjacent elements like [undefined,undefined] are both caught
	s = undefinedValue.ReplaceAllString(s, "${1}null${2}")
	return undefinedValue.ReplaceAllString(s, "${1}null${2}")
}

// isStructuredJSON reports whether s is valid JSON holding an object or array
func isStructuredJSON(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return false
	}
	return gjson.Valid(s)
}

// collectMediaURLs walks the platform paths and returns the URLs of the first
// path that yields any
func collectMediaURLs(p *Profile, root gjson.Result) []string {
	for _, path := range p.StatePaths {
		list := root.Get(path)
		if !list.IsArray() {
			continue
		}
		var urls []string
		list.ForEach(func(_, item gjson.Result) bool {
			if u := itemURL(p, item); u != "" {
				urls = append(urls, u)
			}
			return true
		})
		if len(urls) > 0 {
			return dedupe(urls)
		}
	}
	return nil
}

// itemURL returns the first http URL among the item's aliases
func itemURL(p *Profile, item gjson.Result) string {
	if item.Type == gjson.String {
		return httpOnly(item.String())
	}
	for _, field := range p.ItemURLFields {
		v := item.Get(field)
		if v.Type != gjson.String {
			continue
		}
		if u := httpOnly(v.String()); u != "" {
			return u
		}
	}
	return ""
}

func httpOnly(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "//") {
		s = "https:" + s
	}
	if strings.HasPrefix(strings.ToLower(s), "http") {
		return s
	}
	return ""
}
