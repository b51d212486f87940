package enums

// PlanTier names a subscription level in the plan catalog.
type PlanTier string

const (
	PlanTierFree       PlanTier = "free"
	PlanTierPro        PlanTier = "pro"
	PlanTierEnterprise PlanTier = "enterprise"
)

var validPlanTiers = []PlanTier{
	PlanTierFree,
	PlanTierPro,
	PlanTierEnterprise,
}

// String implements fmt.Stringer.
func (p PlanTier) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p PlanTier) IsValid() bool {
	for _, candidate := range validPlanTiers {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePlanTier converts raw input into a PlanTier, falling back to the
// free tier for anything unrecognized. The catalog never rejects a tier
// name; unknown plans degrade to least privilege.
func ParsePlanTier(value string) PlanTier {
	for _, candidate := range validPlanTiers {
		if string(candidate) == value {
			return candidate
		}
	}
	return PlanTierFree
}
