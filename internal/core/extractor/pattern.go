package extractor

import (
	"net/url"
	"regexp"
	"strings"
)

var urlEscapeReplacer = strings.NewReplacer(
	`\u002F`, "/",
	`\u002f`, "/",
	`\/`, "/",
	`\u0026`, "&",
	"&amp;", "&",
)

// unescapeURL reverses the escaping URLs pick up inside inline script JSON
// and HTML attributes
func unescapeURL(s string) string {
	return urlEscapeReplacer.Replace(s)
}

// ExtractPatterns scans markup with the platform's bare-URL patterns, then
// its fragment patterns. The first pattern with any match decides; its
// matches are unescaped, filtered to media URLs and de-duplicated.
func ExtractPatterns(p *Profile, markup string) []string {
	markup = unescapeURL(markup)
	patterns := make([]*regexp.Regexp, 0, len(p.BarePatterns)+len(p.FragmentPatterns))
	patterns = append(patterns, p.BarePatterns...)
	patterns = append(patterns, p.FragmentPatterns...)
	for _, re := range patterns {
		matches := re.FindAllStringSubmatch(markup, -1)
		if len(matches) == 0 {
			continue
		}
		found := make([]string, 0, len(matches))
		for _, m := range matches {
			u := m[0]
			if len(m) > 1 {
				u = m[len(m)-1]
			}
			found = append(found, unescapeURL(u))
		}
		return dedupe(filterPatternMedia(p, found))
	}
	return nil
}

// mediaHost returns the lower-cased host of an absolute http(s) URL, or ""
func mediaHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return ""
	}
	return strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
}

// IsMediaURL reports whether rawURL is an absolute http(s) URL served from
// one of the platform's media domains or a subdomain of one
func IsMediaURL(p *Profile, rawURL string) bool {
	host := mediaHost(rawURL)
	if host == "" {
		return false
	}
	for _, d := range p.MediaDomains {
		d = strings.Trim(strings.ToLower(d), ".")
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// FilterMedia keeps the URLs that are media URLs of the platform
func FilterMedia(p *Profile, urls []string) []string {
	var out []string
	for _, u := range urls {
		if IsMediaURL(p, u) {
			out = append(out, u)
		}
	}
	return out
}

// filterPatternMedia is FilterMedia plus URLs that carry one of the
// platform's media anchors, which the pattern tiers match on directly.
// Nothing else uses it; the proxy allow-list stays domain based.
func filterPatternMedia(p *Profile, urls []string) []string {
	var out []string
	for _, u := range urls {
		if IsMediaURL(p, u) || hasMediaAnchor(p, u) {
			out = append(out, u)
		}
	}
	return out
}

func hasMediaAnchor(p *Profile, rawURL string) bool {
	if mediaHost(rawURL) == "" {
		return false
	}
	lower := strings.ToLower(rawURL)
	for _, a := range p.MediaAnchors {
		if a != "" && strings.Contains(lower, strings.ToLower(a)) {
			return true
		}
	}
	return false
}
