// Package selector parses compact section lists such as "1,3-5,7".
package selector

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MaxRangeSpan caps how many ids a single range token may expand to.
const MaxRangeSpan = 1_000_000

// ErrRangeTooWide is wrapped by a ParseError when a range exceeds MaxRangeSpan.
var ErrRangeTooWide = errors.New("range too wide")

// Kind tells which rule rejected a token.
type Kind int

const (
	KindValue Kind = iota
	KindRange
)

// ParseError reports a token that is neither an integer nor a range of integers.
type ParseError struct {
	Token string
	Kind  Kind
	Err   error
}

func (e *ParseError) Error() string {
	if e.Kind == KindRange {
		return fmt.Sprintf("Invalid section range: %q", e.Token)
	}
	return fmt.Sprintf("Invalid section value: %q", e.Token)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Set holds selected section ids. A nil Set means "no filter"; Parse never returns nil.
type Set map[int]struct{}

// Parse turns a selector spec into a set of ids.
//
// Tokens are comma separated and whitespace around them is ignored. A dash
// splits a token into an inclusive range only when it is not the first
// character, so "-5" is the single id -5 and "-3-2" is the range [-3, 2].
// Reversed ranges are normalised. Empty tokens are skipped, which makes
// Parse("") an empty, non-nil set.
func Parse(spec string) (Set, error) {
	out := Set{}
	for _, part := range strings.Split(spec, ",") {
		token := strings.TrimSpace(part)
		if token == "" {
			continue
		}
		if dash := strings.Index(token[1:], "-"); dash >= 0 {
			lo, hi, err := parseRange(token, dash+1)
			if err != nil {
				return nil, err
			}
			for n := 0; n <= hi-lo; n++ {
				out[lo+n] = struct{}{}
			}
			continue
		}
		n, err := strconv.Atoi(token)
		if err != nil {
			return nil, &ParseError{Token: token, Kind: KindValue, Err: err}
		}
		out[n] = struct{}{}
	}
	return out, nil
}

func parseRange(token string, dash int) (int, int, error) {
	lo, err := strconv.Atoi(strings.TrimSpace(token[:dash]))
	if err != nil {
		return 0, 0, &ParseError{Token: token, Kind: KindRange, Err: err}
	}
	hi, err := strconv.Atoi(strings.TrimSpace(token[dash+1:]))
	if err != nil {
		return 0, 0, &ParseError{Token: token, Kind: KindRange, Err: err}
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	if uint64(hi)-uint64(lo) >= MaxRangeSpan {
		return 0, 0, &ParseError{Token: token, Kind: KindRange, Err: ErrRangeTooWide}
	}
	return lo, hi, nil
}

// Of builds a set from explicit ids.
func Of(ids ...int) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is selected.
func (s Set) Contains(id int) bool {
	_, ok := s[id]
	return ok
}

func (s Set) Len() int { return len(s) }

// Sorted returns the ids in ascending order.
func (s Set) Sorted() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// String renders the set in compact form, collapsing consecutive ids into ranges.
func (s Set) String() string {
	ids := s.Sorted()
	var b strings.Builder
	for i := 0; i < len(ids); {
		j := i
		for j+1 < len(ids) && ids[j+1] == ids[j]+1 {
			j++
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(ids[i]))
		if j > i {
			b.WriteByte('-')
			b.WriteString(strconv.Itoa(ids[j]))
		}
		i = j + 1
	}
	return b.String()
}
