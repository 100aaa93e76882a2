// Package database keeps the history of sitegrab runs in SQLite.
//
// Each run is stored once in the runs table together with its full JSON
// record, and every discovered page gets a row in the pages table with its
// crawl state and, when it was archived, its file name and content digest.
// The history command compares the pages of two runs to list what appeared,
// disappeared or changed.
//
// modernc.org/sqlite is used so the binary stays CGO-free and the database
// is a single file under the XDG data directory.
package database
