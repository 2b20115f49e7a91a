package models

import "fmt"

// Tier is one rung of the offering escalation ladder. The ladder is finite and
// non-cyclic; LAST_RESORT_RN is terminal.
type Tier int

const (
	TierCasuals Tier = iota
	TierOTFullTime
	TierOTCasuals
	TierLastResortRN
)

// Tiers lists every tier in escalation order.
var Tiers = []Tier{TierCasuals, TierOTFullTime, TierOTCasuals, TierLastResortRN}

func (t Tier) String() string {
	switch t {
	case TierCasuals:
		return "CASUALS"
	case TierOTFullTime:
		return "OT_FULL_TIME"
	case TierOTCasuals:
		return "OT_CASUALS"
	case TierLastResortRN:
		return "LAST_RESORT_RN"
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// Valid reports whether t is one of the declared tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierCasuals, TierOTFullTime, TierOTCasuals, TierLastResortRN:
		return true
	}
	return false
}

// Next returns the successor tier, or false when t is terminal.
func (t Tier) Next() (Tier, bool) {
	switch t {
	case TierCasuals:
		return TierOTFullTime, true
	case TierOTFullTime:
		return TierOTCasuals, true
	case TierOTCasuals:
		return TierLastResortRN, true
	case TierLastResortRN:
		return t, false
	}
	return t, false
}

// Terminal reports whether no tier follows t.
func (t Tier) Terminal() bool {
	_, ok := t.Next()
	return !ok
}

// RequiresConfirmation reports whether entering t needs an explicit caller
// acknowledgement. The engine never blocks on it; callers enforce it.
func RequiresConfirmation(t Tier) bool {
	switch t {
	case TierLastResortRN:
		return true
	case TierCasuals, TierOTFullTime, TierOTCasuals:
		return false
	}
	return false
}

// ParseTier maps a wire name back to a Tier.
func ParseTier(s string) (Tier, error) {
	for _, t := range Tiers {
		if t.String() == s {
			return t, nil
		}
	}
	return TierCasuals, fmt.Errorf("unknown offering tier %q", s)
}

func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid offering tier %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
