package regalloc

import (
	"github.com/pkg/errors"
)

// SpillPolicy chooses which occupied register linear scan evicts when a new
// interval starts and every register is taken.
type SpillPolicy string

const (
	// LongestLiveRange evicts the occupant whose interval ends latest.
	LongestLiveRange SpillPolicy = "longest-live-range"
	// RandomSpill evicts a uniformly chosen occupant.
	RandomSpill SpillPolicy = "random"
)

// SpillPolicies lists the accepted policy names.
var SpillPolicies = []SpillPolicy{LongestLiveRange, RandomSpill}

// String implements pflag.Value
func (p *SpillPolicy) String() string {
	if p == nil || *p == "" {
		return string(LongestLiveRange)
	}
	return string(*p)
}

// Set implements pflag.Value
func (p *SpillPolicy) Set(s string) error {
	policy, err := ParseSpillPolicy(s)
	if err != nil {
		return err
	}
	*p = policy
	return nil
}

// Type implements pflag.Value
func (p *SpillPolicy) Type() string {
	return "policy"
}

// ParseSpillPolicy accepts a policy name; "longest" is short for
// longest-live-range.
func ParseSpillPolicy(s string) (SpillPolicy, error) {
	switch s {
	case string(LongestLiveRange), "longest":
		return LongestLiveRange, nil
	case string(RandomSpill):
		return RandomSpill, nil
	}
	return "", errors.Errorf("unknown spill policy %q (want %s or %s)", s, LongestLiveRange, RandomSpill)
}
