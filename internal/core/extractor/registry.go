package extractor

import (
	"net/url"
	"strings"
	"sync"

	"github.com/guiyumin/unmark/internal/core/config"
	"golang.org/x/net/publicsuffix"
)

// Registry maps hostnames to platform profiles
type Registry struct {
	mu       sync.RWMutex
	byHost   map[string]*Profile
	profiles []*Profile
	generic  *Profile
	locator  *locator
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{byHost: map[string]*Profile{}}
}

// DefaultRegistry holds the built-in Xiaohongshu and Douyin profiles
var DefaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	xhs := xiaohongshuProfile()
	r.Register(xhs, xhs.Hosts...)
	dy := douyinProfile()
	r.Register(dy, dy.Hosts...)
	return r
}

// Register adds a profile for the given hostnames. Short-link hosts are
// registered automatically.
func (r *Registry) Register(p *Profile, hosts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.known(p) {
		r.profiles = append(r.profiles, p)
	}
	for _, host := range append(hosts, p.ShortLinkHosts...) {
		r.byHost[strings.ToLower(host)] = p
	}
	r.generic = nil
	r.locator = nil
}

func (r *Registry) known(p *Profile) bool {
	for _, existing := range r.profiles {
		if existing == p {
			return true
		}
	}
	return false
}

// Profile returns the registered profile for a platform. Unknown platforms
// get a generic profile that merges every registered one.
func (r *Registry) Profile(platform Platform) *Profile {
	r.mu.RLock()
	for _, p := range r.profiles {
		if p.Platform == platform {
			r.mu.RUnlock()
			return p
		}
	}
	r.mu.RUnlock()
	return r.genericProfile()
}

func (r *Registry) genericProfile() *Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generic != nil {
		return r.generic
	}
	g := &Profile{Platform: PlatformUnknown, ItemURLFields: defaultItemURLFields}
	for _, p := range r.profiles {
		g.merge(p)
	}
	r.generic = g
	return g
}

// Detect returns the platform for a host, trying the exact host, the host
// without "www." and finally its registrable domain
func (r *Registry) Detect(host string) Platform {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return PlatformUnknown
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.byHost[host]; ok {
		return p.Platform
	}
	if strings.HasPrefix(host, "www.") {
		if p, ok := r.byHost[host[4:]]; ok {
			return p.Platform
		}
	}
	if root, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		if p, ok := r.byHost[root]; ok {
			return p.Platform
		}
	}
	return PlatformUnknown
}

// Link tags a resolved short link with its platform. The landing host decides;
// the short-link host is the fallback when the landing page is on a foreign host.
func (r *Registry) Link(shortURL, landingURL string) ResolvedLink {
	link := ResolvedLink{ShortURL: shortURL, LandingURL: landingURL, Platform: PlatformUnknown}
	if u, err := url.Parse(landingURL); err == nil {
		link.Platform = r.Detect(u.Hostname())
	}
	if link.Platform == PlatformUnknown {
		if u, err := url.Parse(shortURL); err == nil {
			link.Platform = r.Detect(u.Hostname())
		}
	}
	return link
}

// AllowsMedia reports whether rawURL is a media URL of any registered platform
func (r *Registry) AllowsMedia(rawURL string) bool {
	r.mu.RLock()
	profiles := append([]*Profile(nil), r.profiles...)
	r.mu.RUnlock()
	for _, p := range profiles {
		if IsMediaURL(p, rawURL) {
			return true
		}
	}
	return false
}

// ApplyOverrides extends built-in profiles with entries from platforms.yml.
// Entries naming an unknown platform are ignored.
func (r *Registry) ApplyOverrides(cfg *config.PlatformsConfig) {
	if cfg == nil {
		return
	}
	for _, o := range cfg.Platforms {
		platform := ParsePlatform(o.Platform)
		if platform == PlatformUnknown {
			continue
		}
		r.mu.RLock()
		var target *Profile
		for _, p := range r.profiles {
			if p.Platform == platform {
				target = p
			}
		}
		r.mu.RUnlock()
		if target == nil {
			continue
		}

		extended := target.Clone()
		extended.ShortLinkHosts = appendUnique(extended.ShortLinkHosts, o.ShortLinkHosts...)
		extended.Hosts = appendUnique(extended.Hosts, o.Hosts...)
		extended.MediaDomains = appendUnique(extended.MediaDomains, o.MediaDomains...)
		extended.WatermarkMarkers = appendUnique(extended.WatermarkMarkers, o.WatermarkMarkers...)
		r.replace(target, extended)
	}
}

func (r *Registry) replace(old, p *Profile) {
	r.mu.Lock()
	for i, existing := range r.profiles {
		if existing == old {
			r.profiles[i] = p
		}
	}
	for host, existing := range r.byHost {
		if existing == old {
			r.byHost[host] = p
		}
	}
	r.mu.Unlock()
	r.Register(p, p.Hosts...)
}

// shortLinkHosts lists every registered short-link host in registration order
func (r *Registry) shortLinkHosts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var hosts []string
	for _, p := range r.profiles {
		hosts = appendUnique(hosts, p.ShortLinkHosts...)
	}
	return hosts
}

// Locate finds the first URL in free text using the default registry
func Locate(text string) (string, bool) {
	return DefaultRegistry.Locate(text)
}
