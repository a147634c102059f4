// Package main provides the entry point for the reviewharvest CLI.
//
// reviewharvest collects public app reviews from listing pages rendered in
// a headless browser and appends them to a JSON Lines file, one object per
// review.
//
// Usage:
//
//	reviewharvest harvest <listing-url>...
//	reviewharvest history
//
// See --help for all available options.
package main

// main is the entry point for reviewharvest.
func main() {
	Execute()
}
