// Package config holds the settings of a sitegrab run: crawl limits, fetch
// behavior, archive and grouping locations, report format and the optional
// per-site overrides read from a .sitegrab YAML file.
package config
