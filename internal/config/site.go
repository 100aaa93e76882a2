package config

import "maps"

// SiteConfig holds the settings for one host.
type SiteConfig struct {
	// Headers are extra HTTP headers sent to this host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the inside depth ceiling.
	Depth int `yaml:"depth,omitempty"`

	// OutsideDepth overrides the outside depth ceiling.
	OutsideDepth int `yaml:"outsideDepth,omitempty"`

	// MaxPages overrides the page cap.
	MaxPages int `yaml:"maxPages,omitempty"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`

	// IgnorePatterns are glob patterns on the URL path that are never
	// crawled.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns, when set, are the only paths crawled besides the seed.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File is the structure of the .sitegrab configuration file.
type File struct {
	// Sites maps a host[:port] to its settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every host unless a site entry overrides them.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the defaults merged with the entry for host.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if result.Headers != nil {
		result.Headers = maps.Clone(result.Headers)
	}

	siteConfig, ok := cf.Sites[host]
	if !ok {
		return result
	}

	if siteConfig.Depth != 0 {
		result.Depth = siteConfig.Depth
	}
	if siteConfig.OutsideDepth != 0 {
		result.OutsideDepth = siteConfig.OutsideDepth
	}
	if siteConfig.MaxPages != 0 {
		result.MaxPages = siteConfig.MaxPages
	}
	if siteConfig.UserAgent != "" {
		result.UserAgent = siteConfig.UserAgent
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = siteConfig.FollowPatterns
	}

	return result
}
