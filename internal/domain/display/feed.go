package display

import (
	"fmt"
	"strings"

	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

// Feed selects which stream a display receives
type Feed string

const (
	FeedRaw      Feed = "raw"
	FeedFiltered Feed = "filtered"
)

// ParseFeed validates user input
func ParseFeed(s string) (Feed, error) {
	switch Feed(strings.ToLower(s)) {
	case FeedRaw:
		return FeedRaw, nil
	case FeedFiltered:
		return FeedFiltered, nil
	}
	return "", fmt.Errorf("%w: feed must be raw or filtered, got %q", types.ErrInvalidConfig, s)
}

// SplitPolicy decides the feed of displays without an explicit one: the
// first half of the display list is raw, the second half filtered
type SplitPolicy string

const (
	// SplitCeil gives the middle display of an odd count to raw
	SplitCeil SplitPolicy = "ceil"
	// SplitFloor gives the middle display of an odd count to filtered
	SplitFloor SplitPolicy = "floor"
)

// ParseSplitPolicy validates configuration input
func ParseSplitPolicy(s string) (SplitPolicy, error) {
	switch SplitPolicy(strings.ToLower(s)) {
	case SplitCeil, "":
		return SplitCeil, nil
	case SplitFloor:
		return SplitFloor, nil
	}
	return "", fmt.Errorf("%w: split policy must be ceil or floor, got %q", types.ErrInvalidConfig, s)
}

// FeedFor returns the feed of the display at index among count displays
func (p SplitPolicy) FeedFor(index, count int) Feed {
	raw := count / 2
	if p != SplitFloor {
		raw = (count + 1) / 2
	}
	if index < raw {
		return FeedRaw
	}
	return FeedFiltered
}
