package extractor

import (
	"regexp"
)

// StateMarker locates an embedded page-state payload in markup.
// Exactly one of Assign or Selector is set.
type StateMarker struct {
	// Assign matches the assignment prefix, e.g. `window.__INITIAL_STATE__ =`.
	// The payload starts right after the match.
	Assign *regexp.Regexp
	// Selector picks an element (usually a script tag) whose text is the payload
	Selector string
}

// Profile holds everything platform specific the pipeline needs
type Profile struct {
	Platform Platform

	// Hosts are landing-page hostnames, matched exactly or by registrable domain
	Hosts []string
	// ShortLinkHosts are the share-link hosts the locator looks for first
	ShortLinkHosts []string

	// IDPatterns are tried in order; the last capture group is the content ID
	IDPatterns []*regexp.Regexp

	StateMarkers []StateMarker
	// StatePaths are gjson paths to media item arrays, first non-empty wins
	StatePaths []string
	// ItemURLFields are gjson paths tried on each media item
	ItemURLFields []string

	// BarePatterns match whole media URLs anchored on CDN host prefixes
	BarePatterns []*regexp.Regexp
	// FragmentPatterns match JSON fragments or meta tags with one capture group
	FragmentPatterns []*regexp.Regexp

	// MediaDomains are the domains media is served from; subdomains match
	MediaDomains []string
	// MediaAnchors mark a media URL found by the pattern tiers even when
	// its host is not a media domain, e.g. the "sns-" CDN prefix
	MediaAnchors []string
	// WatermarkMarkers flag a URL path as watermarked
	WatermarkMarkers []string
	// SuffixDelimiters start the processing suffix of a media URL path
	SuffixDelimiters []string
}

var defaultItemURLFields = []string{
	"url",
	"originalUrl",
	"originUrl",
	"info.url",
	"urlDefault",
	"url_list.0",
	"urlList.0",
}

// genericStateAssign matches `__INITIAL_STATE__ =`, `window.__STATE__=` and friends
var genericStateAssign = regexp.MustCompile(`(?:window\.)?__[A-Z_]*STATE__\s*=`)

func xiaohongshuProfile() *Profile {
	return &Profile{
		Platform:       PlatformXiaohongshu,
		Hosts:          []string{"xiaohongshu.com", "www.xiaohongshu.com", "xhslink.com"},
		ShortLinkHosts: []string{"xhslink.com"},
		IDPatterns: []*regexp.Regexp{
			regexp.MustCompile(`/explore/([a-fA-F0-9]+)`),
			regexp.MustCompile(`/discovery/item/([a-fA-F0-9]+)`),
			regexp.MustCompile(`/user/profile/([a-fA-F0-9]+)/notes/([a-fA-F0-9]+)`),
		},
		StateMarkers: []StateMarker{
			{Assign: regexp.MustCompile(`window\.__INITIAL_STATE__\s*=`)},
			{Assign: genericStateAssign},
		},
		StatePaths: []string{
			"note.note.imageList",
			"note.note.images",
			"note.imageList",
			"note.images",
			"note.noteDetailMap.*.note.imageList",
		},
		ItemURLFields: defaultItemURLFields,
		BarePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)https?://[^"'<>\s\\]*sns-webpic-[^"'<>\s\\]+`),
			regexp.MustCompile(`(?i)https?://[^"'<>\s\\]*sns-img-[^"'<>\s\\]+`),
			regexp.MustCompile(`(?i)https?://ci\.xiaohongshu\.com/[^"'<>\s\\]+`),
		},
		FragmentPatterns: []*regexp.Regexp{
			regexp.MustCompile(`"imageList"\s*:\s*\[\s*\{[^\]]*?"url(?:Default)?"\s*:\s*"(https?://[^"]+)"`),
			regexp.MustCompile(`"originalUrl"\s*:\s*"(https?://[^"]+)"`),
			regexp.MustCompile(`"originUrl"\s*:\s*"(https?://[^"]+)"`),
			regexp.MustCompile(`"url"\s*:\s*"(https?://[^"]+)"`),
			regexp.MustCompile(`(?i)<meta[^>]+(?:property|name)="og:image"[^>]+content="([^"]+)"`),
		},
		MediaDomains:     []string{"xhscdn.com", "xiaohongshu.com"},
		MediaAnchors:     []string{"sns-"},
		WatermarkMarkers: []string{"!nd_", "watermark"},
		SuffixDelimiters: []string{"!"},
	}
}

func douyinProfile() *Profile {
	return &Profile{
		Platform:       PlatformDouyin,
		Hosts:          []string{"douyin.com", "www.douyin.com", "iesdouyin.com"},
		ShortLinkHosts: []string{"v.douyin.com"},
		IDPatterns: []*regexp.Regexp{
			regexp.MustCompile(`/video/(\d+)`),
			regexp.MustCompile(`/note/(\d+)`),
			regexp.MustCompile(`/share/video/(\d+)`),
		},
		StateMarkers: []StateMarker{
			{Assign: regexp.MustCompile(`window\._ROUTER_DATA\s*=`)},
			{Selector: "script#RENDER_DATA"},
			{Assign: genericStateAssign},
		},
		StatePaths: []string{
			"loaderData.video_(id)/page.videoInfoRes.item_list.0.images",
			"loaderData.note_(id)/page.videoInfoRes.item_list.0.images",
			"app.videoDetail.images",
			"aweme_detail.images",
		},
		ItemURLFields: defaultItemURLFields,
		BarePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)https?://[^"'<>\s\\]*douyinpic\.com/[^"'<>\s\\]+`),
		},
		FragmentPatterns: []*regexp.Regexp{
			regexp.MustCompile(`"url_list"\s*:\s*\[\s*"(https?://[^"]+)"`),
			regexp.MustCompile(`(?i)<meta[^>]+(?:property|name)="og:image"[^>]+content="([^"]+)"`),
		},
		MediaDomains:     []string{"douyinpic.com", "douyinvod.com", "zjcdn.com", "byteimg.com"},
		WatermarkMarkers: []string{"water"},
		SuffixDelimiters: []string{"~tplv-"},
	}
}

// Clone returns a copy whose slices can be extended without touching p
func (p *Profile) Clone() *Profile {
	c := *p
	c.Hosts = append([]string(nil), p.Hosts...)
	c.ShortLinkHosts = append([]string(nil), p.ShortLinkHosts...)
	c.IDPatterns = append([]*regexp.Regexp(nil), p.IDPatterns...)
	c.StateMarkers = append([]StateMarker(nil), p.StateMarkers...)
	c.StatePaths = append([]string(nil), p.StatePaths...)
	c.ItemURLFields = append([]string(nil), p.ItemURLFields...)
	c.BarePatterns = append([]*regexp.Regexp(nil), p.BarePatterns...)
	c.FragmentPatterns = append([]*regexp.Regexp(nil), p.FragmentPatterns...)
	c.MediaDomains = append([]string(nil), p.MediaDomains...)
	c.MediaAnchors = append([]string(nil), p.MediaAnchors...)
	c.WatermarkMarkers = append([]string(nil), p.WatermarkMarkers...)
	c.SuffixDelimiters = append([]string(nil), p.SuffixDelimiters...)
	return &c
}

// merge folds other's lists into p, skipping entries p already has
func (p *Profile) merge(other *Profile) {
	p.ShortLinkHosts = appendUnique(p.ShortLinkHosts, other.ShortLinkHosts...)
	p.IDPatterns = append(p.IDPatterns, other.IDPatterns...)
	p.StateMarkers = append(p.StateMarkers, other.StateMarkers...)
	p.StatePaths = appendUnique(p.StatePaths, other.StatePaths...)
	p.ItemURLFields = appendUnique(p.ItemURLFields, other.ItemURLFields...)
	p.BarePatterns = append(p.BarePatterns, other.BarePatterns...)
	p.FragmentPatterns = append(p.FragmentPatterns, other.FragmentPatterns...)
	p.MediaDomains = appendUnique(p.MediaDomains, other.MediaDomains...)
	p.MediaAnchors = appendUnique(p.MediaAnchors, other.MediaAnchors...)
	p.WatermarkMarkers = appendUnique(p.WatermarkMarkers, other.WatermarkMarkers...)
	p.SuffixDelimiters = appendUnique(p.SuffixDelimiters, other.SuffixDelimiters...)
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if v == "" || containsString(dst, v) {
			continue
		}
		dst = append(dst, v)
	}
	return dst
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
