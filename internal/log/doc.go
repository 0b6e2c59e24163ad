// Package log provides logging with automatic masking of credentials,
// built on top of the standard slog package.
//
// Site profiles may carry cookies and authorization headers needed to crawl
// access-restricted directories. Those values flow through the fetcher and
// would otherwise end up in debug logs next to every request. The masking
// handler intercepts log records and replaces credential-bearing attribute
// values before they reach the underlying handler, so even verbose crawl
// logs are safe to share.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, true) // verbose=true
//	logger.Debug("request sent",
//	    "cookie", "session=abc123", // masked
//	    "url", "https://example.com/category/tamil/",
//	)
package log
