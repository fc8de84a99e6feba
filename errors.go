package attrstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a value has no entry in the attribute.
	ErrNotFound = errors.New("not found")
)

// ErrStaleRef indicates an EntryRef that was invalidated by a compaction
// the holder did not remap through, or that never pointed at a live entry.
type ErrStaleRef struct {
	Ref string
}

func (e *ErrStaleRef) Error() string {
	return fmt.Sprintf("stale ref: %s", e.Ref)
}
