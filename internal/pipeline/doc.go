// Package pipeline orchestrates the phases of a crawl: the frontier crawl,
// the pagination runs, gateway resolution, result collection, and
// persistence.
//
// Each phase is a Step executed in sequence over a shared Job. The split
// into explicit phases keeps the frontier workers free of slow gateway
// fetches and makes each phase independently testable.
package pipeline
