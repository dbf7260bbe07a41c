// Package id mints the order and trade identifiers used across the journal.
package id

import "github.com/oklog/ulid/v2"

// New returns a fresh ULID string. ULIDs sort by creation time, IDs minted
// within the same millisecond included, so journal listings and SQLite
// indexes stay chronological without an extra column.
func New() string {
	return ulid.Make().String()
}
