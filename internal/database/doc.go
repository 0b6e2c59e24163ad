// Package database provides SQLite-based persistence for crawl sessions and
// discovered target links. The pure-Go modernc.org/sqlite driver keeps the
// binary free of cgo.
package database
