package extractor

import (
	"testing"

	"github.com/guiyumin/unmark/internal/core/config"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		host string
		want Platform
	}{
		{"www.xiaohongshu.com", PlatformXiaohongshu},
		{"xiaohongshu.com", PlatformXiaohongshu},
		{"edith.xiaohongshu.com", PlatformXiaohongshu},
		{"XHSLINK.COM", PlatformXiaohongshu},
		{"v.douyin.com", PlatformDouyin},
		{"www.iesdouyin.com", PlatformDouyin},
		{"m.douyin.com.", PlatformDouyin},
		{"example.com", PlatformUnknown},
		{"127.0.0.1", PlatformUnknown},
		{"", PlatformUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := DefaultRegistry.Detect(tt.host); got != tt.want {
				t.Errorf("Detect(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}

func TestLink(t *testing.T) {
	link := DefaultRegistry.Link("http://xhslink.com/a/x", "https://www.xiaohongshu.com/explore/64a1")
	if link.Platform != PlatformXiaohongshu {
		t.Errorf("Platform = %q, want xiaohongshu", link.Platform)
	}

	// landing on a foreign host falls back to the short link's platform
	link = DefaultRegistry.Link("https://v.douyin.com/abc/", "https://login.example.com/?next=1")
	if link.Platform != PlatformDouyin {
		t.Errorf("Platform = %q, want douyin from short link", link.Platform)
	}

	link = DefaultRegistry.Link("https://a.example/x", "https://b.example/y")
	if link.Platform != PlatformUnknown {
		t.Errorf("Platform = %q, want unknown", link.Platform)
	}
}

func TestGenericProfileMergesPlatforms(t *testing.T) {
	g := DefaultRegistry.Profile(PlatformUnknown)
	if g.Platform != PlatformUnknown {
		t.Fatalf("Platform = %q, want unknown", g.Platform)
	}
	for _, d := range []string{"xhscdn.com", "douyinpic.com"} {
		if !containsString(g.MediaDomains, d) {
			t.Errorf("generic MediaDomains missing %q: %v", d, g.MediaDomains)
		}
	}
	if !containsString(g.SuffixDelimiters, "!") || !containsString(g.SuffixDelimiters, "~tplv-") {
		t.Errorf("generic SuffixDelimiters = %v", g.SuffixDelimiters)
	}
	if DefaultRegistry.Profile(PlatformDouyin).Platform != PlatformDouyin {
		t.Error("Profile(douyin) should return the douyin profile")
	}
}

func TestAllowsMedia(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://sns-webpic-qc.xhscdn.com/202401/a/b!nd_dft_wlteh_webp_3", true},
		{"https://p3-pc-sign.douyinpic.com/tos-cn-i/abc~tplv-dy.webp", true},
		{"https://evil.example.com/xhscdn.com/a.jpg", false},
		{"ftp://sns-webpic-qc.xhscdn.com/a.jpg", false},
		{"/relative/xhscdn.com", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := DefaultRegistry.AllowsMedia(tt.url); got != tt.want {
				t.Errorf("AllowsMedia(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	r := newDefaultRegistry()
	r.ApplyOverrides(&config.PlatformsConfig{
		Platforms: []config.PlatformOverride{
			{
				Platform:         "xiaohongshu",
				ShortLinkHosts:   []string{"xhslink.cn"},
				MediaDomains:     []string{"xhsimg.example"},
				WatermarkMarkers: []string{"wm_"},
			},
			{Platform: "weibo", MediaDomains: []string{"sinaimg.cn"}},
		},
	})

	if got := r.Detect("xhslink.cn"); got != PlatformXiaohongshu {
		t.Errorf("Detect(xhslink.cn) = %q, want xiaohongshu", got)
	}
	if got, ok := r.Locate("分享 https://other.example/1 http://xhslink.cn/a/b"); !ok || got != "http://xhslink.cn/a/b" {
		t.Errorf("Locate = %q, %v; want the extra short link", got, ok)
	}

	p := r.Profile(PlatformXiaohongshu)
	if !IsMediaURL(p, "https://a.xhsimg.example/x.jpg") {
		t.Error("extra media domain not applied")
	}
	if !containsString(p.WatermarkMarkers, "wm_") {
		t.Errorf("WatermarkMarkers = %v", p.WatermarkMarkers)
	}
	if r.AllowsMedia("https://sinaimg.cn/a.jpg") {
		t.Error("override for an unknown platform must be ignored")
	}

	// the shared default registry is untouched
	if IsMediaURL(DefaultRegistry.Profile(PlatformXiaohongshu), "https://a.xhsimg.example/x.jpg") {
		t.Error("ApplyOverrides leaked into DefaultRegistry")
	}
	r.ApplyOverrides(nil)
}

func TestExtractID(t *testing.T) {
	xhs := xiaohongshuProfile()
	dy := douyinProfile()
	tests := []struct {
		name    string
		profile *Profile
		url     string
		want    string
	}{
		{"explore", xhs, "https://www.xiaohongshu.com/explore/64a1b2c3d4e5f6?xsec_token=x", "64a1b2c3d4e5f6"},
		{"discovery", xhs, "https://www.xiaohongshu.com/discovery/item/65f0aa11bb22", "65f0aa11bb22"},
		{"profile notes takes second group", xhs, "https://www.xiaohongshu.com/user/profile/5e0f1a/notes/66ab12cd", "66ab12cd"},
		{"query is ignored", xhs, "https://www.xiaohongshu.com/404?redirect=/explore/abcdef", ""},
		{"no id", xhs, "https://www.xiaohongshu.com/", ""},
		{"douyin video", dy, "https://www.douyin.com/video/7301234567890123456", "7301234567890123456"},
		{"douyin note", dy, "https://www.iesdouyin.com/share/note/7309876543210987654/?region=CN", "7309876543210987654"},
		{"douyin share video", dy, "https://www.iesdouyin.com/share/video/7301111111111111111/", "7301111111111111111"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractID(tt.profile, tt.url); got != tt.want {
				t.Errorf("ExtractID(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}
