// Package crawler implements the linkharvest crawl engine.
//
// # Architecture
//
// The engine is a breadth-first frontier traversal with a fixed pool of
// concurrent workers, coordinated by the Spider type. Each worker dequeues a
// (url, depth) pair, consults the VisitedSet, waits on the RateGate for the
// URL's origin, fetches the page, and hands the body to the Extractor. Target
// links land in the ResultSet; same-origin links go back into the frontier at
// depth+1.
//
// # Components
//
//   - Spider: frontier queue plus the worker pool
//   - Fetcher: single-page retrieval with timeout, retry, and backoff
//   - Extractor: splits a page into crawlable, direct, and gateway links
//   - Paginator: drives a site's incremental-load endpoint to exhaustion
//   - GatewayResolver: recovers the deferred target URL from gateway pages
//   - RateGate: per-origin politeness throttling
//   - VisitedSet / ResultSet: atomic at-most-once bookkeeping
//
// # Politeness
//
// The crawler is designed to be polite:
//   - A minimum interval between requests to the same origin, enforced
//     atomically across workers
//   - A small, fixed worker pool
//   - Depth and page limits
//   - Cooperative cancellation at every suspension point
//
// # Failure policy
//
// All per-URL failures are local. A fetch or parse failure removes that URL
// from consideration and increments a skip counter; it never aborts the
// crawl, and already-collected links are never dropped.
package crawler
