package extractor

import "net/url"

// ExtractID returns the content identifier embedded in a landing URL, or ""
// if no pattern of the platform matches. The ID is informational only.
func ExtractID(p *Profile, landingURL string) string {
	target := landingURL
	if u, err := url.Parse(landingURL); err == nil && u.Path != "" {
		target = u.Path
	}
	for _, re := range p.IDPatterns {
		m := re.FindStringSubmatch(target)
		if len(m) < 2 {
			continue
		}
		return m[len(m)-1]
	}
	return ""
}
