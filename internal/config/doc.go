// Package config provides the configuration of a harvest run: the seed
// sources, quota and stabilization knobs, the locators of the target
// listing, browser session options, and per-source overrides.
package config
