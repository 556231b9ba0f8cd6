// Package matching decides which local item corresponds to a remote record.
//
// Rules are applied in precedence order and the first rule that yields
// exactly one candidate wins:
//
//  1. the local item's remote id equals the remote id;
//  2. the remote title equals the local title or one of its alternate titles.
//
// A rule that yields more than one candidate is an ambiguity and is never
// resolved by guessing.
package matching

import (
	"errors"
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/odyssey-erp/stocksync/internal/inventory"
)

var (
	// ErrNoMatch indicates no local item corresponds to the remote record.
	ErrNoMatch = errors.New("matching: no local item matches")
	// ErrAmbiguousMatch indicates more than one local item satisfies a rule.
	ErrAmbiguousMatch = errors.New("matching: ambiguous local match")
)

// Rule identifies which precedence rule produced a match.
type Rule int

const (
	// RuleNone means no rule matched.
	RuleNone Rule = iota
	// RuleRemoteID matched on the linked remote id.
	RuleRemoteID
	// RuleTitle matched on exact title equality.
	RuleTitle
)

func (r Rule) String() string {
	switch r {
	case RuleRemoteID:
		return "remote_id"
	case RuleTitle:
		return "title"
	default:
		return "none"
	}
}

// Target is the remote side of a correspondence check.
type Target struct {
	RemoteID string
	Title    string
}

// Result is the index of the matched candidate and the rule that matched.
type Result struct {
	Index int
	Rule  Rule
}

// Resolve returns the single local candidate corresponding to target.
func Resolve(target Target, candidates []inventory.Item) (Result, error) {
	if target.RemoteID != "" {
		idx := ByRemoteID(target.RemoteID, candidates)
		switch len(idx) {
		case 1:
			return Result{Index: idx[0], Rule: RuleRemoteID}, nil
		case 0:
		default:
			return Result{Index: -1}, fmt.Errorf("remote id %s on %d items: %w", target.RemoteID, len(idx), ErrAmbiguousMatch)
		}
	}
	if target.Title != "" {
		idx := ByTitle(target.Title, candidates)
		switch len(idx) {
		case 1:
			return Result{Index: idx[0], Rule: RuleTitle}, nil
		case 0:
		default:
			return Result{Index: -1}, fmt.Errorf("title %q on %d items: %w", target.Title, len(idx), ErrAmbiguousMatch)
		}
	}
	return Result{Index: -1}, ErrNoMatch
}

// ByRemoteID returns the indexes of candidates linked to remoteID.
func ByRemoteID(remoteID string, candidates []inventory.Item) []int {
	var out []int
	if remoteID == "" {
		return out
	}
	for i, c := range candidates {
		if c.RemoteID == remoteID {
			out = append(out, i)
		}
	}
	return out
}

// ByTitle returns the indexes of candidates whose title or alternate title
// equals title.
func ByTitle(title string, candidates []inventory.Item) []int {
	var out []int
	want := canonical(title)
	if want == "" {
		return out
	}
	for i, c := range candidates {
		for _, t := range c.Titles() {
			if t != "" && canonical(t) == want {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

// canonical maps canonically equivalent Unicode encodings of the same text
// onto one form. It does not fold case or whitespace.
func canonical(s string) string {
	return norm.NFC.String(s)
}
