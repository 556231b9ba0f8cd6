// Package dedup keeps outbound delivery events from being applied twice.
//
// SeenKeys guards a single delta run; SyncCursor bounds which events are
// requested across runs. The two have different lifetimes and are kept apart.
package dedup

import (
	"errors"

	"github.com/odyssey-erp/stocksync/internal/matching"
	"github.com/odyssey-erp/stocksync/internal/remote"
)

// ErrDuplicateEvent marks an event rejected because one of its keys was seen.
var ErrDuplicateEvent = errors.New("dedup: duplicate delivery event")

// SeenKeys tracks primary and secondary event keys for one run.
type SeenKeys struct {
	primary   map[string]struct{}
	secondary map[string]struct{}
}

// NewSeenKeys returns an empty key set.
func NewSeenKeys() *SeenKeys {
	s := &SeenKeys{}
	s.Reset()
	return s
}

// Reset clears both sets.
func (s *SeenKeys) Reset() {
	s.primary = make(map[string]struct{})
	s.secondary = make(map[string]struct{})
}

// Seed records keys that were processed before the run started. Empty keys
// are ignored.
func (s *SeenKeys) Seed(primary, secondary string) {
	if primary != "" {
		s.primary[primary] = struct{}{}
	}
	if secondary != "" {
		s.secondary[secondary] = struct{}{}
	}
}

// Check returns ErrDuplicateEvent if either key of e was already admitted or
// seeded. It does not record anything.
func (s *SeenKeys) Check(e remote.OutboundDeliveryEvent) error {
	primary, secondary := matching.EventKeys(e)
	if primary != "" {
		if _, ok := s.primary[primary]; ok {
			return ErrDuplicateEvent
		}
	}
	if _, ok := s.secondary[secondary]; ok {
		return ErrDuplicateEvent
	}
	return nil
}

// Admit reports whether e is new and, if so, records both of its keys.
func (s *SeenKeys) Admit(e remote.OutboundDeliveryEvent) bool {
	if s.Check(e) != nil {
		return false
	}
	s.Seed(matching.EventKeys(e))
	return true
}

// Len returns the number of distinct primary and secondary keys held.
func (s *SeenKeys) Len() (primary, secondary int) {
	return len(s.primary), len(s.secondary)
}
