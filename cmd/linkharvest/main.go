// Package main provides the entry point for the linkharvest CLI.
//
// linkharvest crawls link-directory sites and collects outbound target
// links, including links hidden behind client-side gateway redirects and
// incremental-load pagination.
//
// Usage:
//
//	linkharvest crawl https://example-directory.com
//
// See --help for all available options.
package main

// main is the entry point for linkharvest.
func main() {
	Execute()
}
