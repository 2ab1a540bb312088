package research

import "time"

// DepthProfile bundles the effort knobs of one depth tier.
type DepthProfile struct {
	// Queries is how many query variations each adapter receives.
	Queries int
	// Budget is the wall-clock limit for the whole fan-out.
	Budget time.Duration
	// VaultResults caps how many personal notes are returned.
	VaultResults int
	// MinResults is the unique-result floor below which the report carries
	// an InsufficientResults warning.
	MinResults int
	// MaxPerSource caps any single adapter's contribution.
	MaxPerSource int
	// EstimatedCost is the expected spend for the tier in USD.
	EstimatedCost float64
}

var depthProfiles = map[Depth]DepthProfile{
	DepthMinimal:   {Queries: 2, Budget: 60 * time.Second, VaultResults: 3, MinResults: 2, MaxPerSource: 15, EstimatedCost: 0.14},
	DepthLight:     {Queries: 4, Budget: 90 * time.Second, VaultResults: 5, MinResults: 4, MaxPerSource: 15, EstimatedCost: 0.14},
	DepthModerate:  {Queries: 6, Budget: 120 * time.Second, VaultResults: 8, MinResults: 6, MaxPerSource: 15, EstimatedCost: 0.18},
	DepthDeep:      {Queries: 10, Budget: 180 * time.Second, VaultResults: 12, MinResults: 10, MaxPerSource: 15, EstimatedCost: 0.20},
	DepthExtensive: {Queries: 15, Budget: 240 * time.Second, VaultResults: 15, MinResults: 15, MaxPerSource: 15, EstimatedCost: 0.22},
}

// ProfileFor returns the profile of a depth tier, falling back to moderate
// for unknown values so a zero Depth never zeroes the budget.
func ProfileFor(d Depth) DepthProfile {
	if p, ok := depthProfiles[d]; ok {
		return p
	}
	return depthProfiles[DepthModerate]
}

// Depths lists the known tiers from cheapest to most thorough.
func Depths() []Depth {
	return []Depth{DepthMinimal, DepthLight, DepthModerate, DepthDeep, DepthExtensive}
}
