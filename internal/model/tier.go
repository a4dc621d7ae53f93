package model

import "fmt"

// Tier is one horizontal layer of the fabric. The numeric value is the tier
// digit used in legacy switch names.
type Tier int

const (
	TierMetro           Tier = 1
	TierCore            Tier = 2
	TierAggregation     Tier = 3
	TierEdge            Tier = 4
	TierContentDelivery Tier = 5
)

// CompileOrder lists the tiers in the order the compiler walks them:
// from Edge up to Core, then down to the tier-1 switches.
var CompileOrder = []Tier{
	TierEdge,
	TierAggregation,
	TierCore,
	TierContentDelivery,
	TierMetro,
}

// tierNames maps each tier to its config/display key.
var tierNames = map[Tier]string{
	TierMetro:           "metro",
	TierCore:            "core",
	TierAggregation:     "aggregation",
	TierEdge:            "edge",
	TierContentDelivery: "cdn",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Valid reports whether t is one of the five fabric tiers.
func (t Tier) Valid() bool {
	_, ok := tierNames[t]
	return ok
}

