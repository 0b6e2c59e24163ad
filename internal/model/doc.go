// Package model defines the data structures shared across linkharvest.
//
// The central type is TargetLink, the fixed-shape record for a discovered
// invite link. Every link carries a LinkKind describing how it was found
// (directly in markup, behind a gateway page, or via a paginated endpoint),
// which allows exhaustive handling in the report writers and the database
// layer.
//
// Page is the raw result of a single fetch, and CrawlReport aggregates the
// outcome of one crawl invocation: the deduplicated target links, page and
// failure counters, and timing information.
package model
