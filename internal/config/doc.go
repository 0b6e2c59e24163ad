// Package config defines configuration for linkharvest.
//
// Configuration comes from three layers:
//
//  1. Compile-time defaults (NewConfig), chosen to be polite to the crawled
//     directories: one request per second per origin, a small worker pool,
//     and conservative timeouts.
//  2. An optional YAML configuration file (.linkharvest) holding per-site
//     profiles: the target-link pattern, the gateway click-handler signature,
//     pagination endpoints, and access credentials for a given directory site.
//  3. CLI flags, which override both.
//
// Validate is called once after flag parsing; an invalid configuration is the
// only fatal error in the application, and it fires before any worker starts.
package config
