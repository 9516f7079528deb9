package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const PlatformsFileName = "platforms.yml"

// PlatformOverride extends a built-in platform profile
type PlatformOverride struct {
	// Platform names the profile to extend ("xiaohongshu" or "douyin")
	Platform string `yaml:"platform"`

	// ShortLinkHosts are extra share-link hosts (e.g., "xhslink.cn")
	ShortLinkHosts []string `yaml:"short_link_hosts,omitempty"`

	// Hosts are extra landing-page hosts
	Hosts []string `yaml:"hosts,omitempty"`

	// MediaDomains are extra CDN domains media URLs may use; subdomains match
	MediaDomains []string `yaml:"media_domains,omitempty"`

	// WatermarkMarkers are extra URL substrings that flag a watermarked image
	WatermarkMarkers []string `yaml:"watermark_markers,omitempty"`
}

// PlatformsConfig holds the platforms configuration
type PlatformsConfig struct {
	Platforms []PlatformOverride `yaml:"platforms"`
}

// LoadPlatforms reads platforms.yml from the current directory
func LoadPlatforms() (*PlatformsConfig, error) {
	return LoadPlatformsFile(PlatformsFileName)
}

// LoadPlatformsFile reads a platforms file. A missing file is not an error.
func LoadPlatformsFile(path string) (*PlatformsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No platforms.yml, that's fine
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg := &PlatformsConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// SavePlatforms writes platforms.yml to the current directory
func SavePlatforms(cfg *PlatformsConfig) error {
	return SavePlatformsFile(PlatformsFileName, cfg)
}

// SavePlatformsFile writes a platforms file to path
func SavePlatformsFile(path string, cfg *PlatformsConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize platforms config: %w", err)
	}

	header := "# unmark platforms configuration\n# Extra hosts, media domains and watermark markers per platform\n\n"
	content := header + string(data)

	return os.WriteFile(path, []byte(content), 0644)
}

// Match finds the override that lists host as a short-link or landing host
func (c *PlatformsConfig) Match(host string) *PlatformOverride {
	if c == nil {
		return nil
	}
	host = strings.ToLower(host)
	for i := range c.Platforms {
		o := &c.Platforms[i]
		for _, h := range append(append([]string(nil), o.ShortLinkHosts...), o.Hosts...) {
			if strings.EqualFold(h, host) {
				return o
			}
		}
	}
	return nil
}

// Find returns the override for a platform name, or nil
func (c *PlatformsConfig) Find(platform string) *PlatformOverride {
	if c == nil {
		return nil
	}
	for i := range c.Platforms {
		if strings.EqualFold(c.Platforms[i].Platform, platform) {
			return &c.Platforms[i]
		}
	}
	return nil
}

// AddMediaDomain records an extra media domain for a platform, creating the
// override entry if needed
func (c *PlatformsConfig) AddMediaDomain(platform, domain string) {
	o := c.Find(platform)
	if o == nil {
		c.Platforms = append(c.Platforms, PlatformOverride{Platform: platform})
		o = &c.Platforms[len(c.Platforms)-1]
	}
	for _, d := range o.MediaDomains {
		if d == domain {
			return
		}
	}
	o.MediaDomains = append(o.MediaDomains, domain)
}

// PlatformsExist checks if platforms.yml exists in current directory
func PlatformsExist() bool {
	_, err := os.Stat(PlatformsFileName)
	return err == nil
}
