package reconcile

import (
	"fmt"
	"strings"

	"lol-tracker/internal/errs"
)

// RiotID is a player's "GameName#TagLine".
type RiotID struct {
	GameName string
	TagLine  string
}

// ParseRiotID splits "GameName#TagLine" on the last '#'. Both halves are
// trimmed and must be non-empty.
func ParseRiotID(input string) (RiotID, error) {
	idx := strings.LastIndex(input, "#")
	if idx < 0 {
		return RiotID{}, fmt.Errorf("riot id %q has no '#' separator: %w", input, errs.ErrMalformedInput)
	}
	id := RiotID{
		GameName: strings.TrimSpace(input[:idx]),
		TagLine:  strings.TrimSpace(input[idx+1:]),
	}
	if id.GameName == "" || id.TagLine == "" {
		return RiotID{}, fmt.Errorf("riot id %q needs both a game name and a tag: %w", input, errs.ErrMalformedInput)
	}
	return id, nil
}

// Gametag is the store key: game name and tag concatenated, case preserved.
func (id RiotID) Gametag() string {
	return id.GameName + id.TagLine
}

func (id RiotID) String() string {
	return id.GameName + "#" + id.TagLine
}
