package vault

import (
	"fmt"
	"strings"
	"time"
)

// Conviction selects the lock duration and voting power multiplier of a
// position. The set of levels is fixed.
type Conviction uint8

const (
	ConvictionOneDay Conviction = iota + 1
	ConvictionSevenDays
	ConvictionFourteenDays
	ConvictionTwentyEightDays
	ConvictionNinetyDays
)

const day = 24 * time.Hour

type convictionSpec struct {
	name       string
	duration   time.Duration
	multiplier uint64
}

var convictions = map[Conviction]convictionSpec{
	ConvictionOneDay:          {"1d", day, 100},
	ConvictionSevenDays:       {"7d", 7 * day, 150},
	ConvictionFourteenDays:    {"14d", 14 * day, 200},
	ConvictionTwentyEightDays: {"28d", 28 * day, 300},
	ConvictionNinetyDays:      {"90d", 90 * day, 400},
}

// Valid reports whether c is one of the defined levels.
func (c Conviction) Valid() bool {
	_, ok := convictions[c]
	return ok
}

// Duration is the lock period of the level.
func (c Conviction) Duration() time.Duration { return convictions[c].duration }

// Seconds is the lock period in whole seconds.
func (c Conviction) Seconds() uint64 { return uint64(convictions[c].duration / time.Second) }

// Multiplier is the power multiplier scaled by 100.
func (c Conviction) Multiplier() uint64 { return convictions[c].multiplier }

func (c Conviction) String() string {
	if entry, ok := convictions[c]; ok {
		return entry.name
	}
	return fmt.Sprintf("conviction(%d)", uint8(c))
}

// MarshalText encodes the level by name.
func (c Conviction) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("vault: invalid conviction %d", uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (c *Conviction) UnmarshalText(text []byte) error {
	parsed, err := ParseConviction(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseConviction maps "1d", "7d", "14d", "28d" or "90d" onto a level. The
// long forms "1day" and "7days" are accepted too.
func ParseConviction(raw string) (Conviction, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if trimmed, ok := strings.CutSuffix(name, "days"); ok {
		name = trimmed + "d"
	} else if trimmed, ok := strings.CutSuffix(name, "day"); ok {
		name = trimmed + "d"
	}
	for c, entry := range convictions {
		if entry.name == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidConviction, raw)
}
