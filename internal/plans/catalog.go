package plans

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/config"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
)

// Unlimited marks a limit as uncapped for a tier.
const Unlimited int64 = -1

// Tier is one entry in the plan catalog.
type Tier struct {
	Name               enums.PlanTier
	MonthlyPriceCents  int64
	AICallsLimit       int64
	RenderMinutesLimit int64
	StorageGBLimit     decimal.Decimal
	StripePriceID      string
}

// Limit returns the tier's cap for the given metric. Storage is reported
// in whole-GB units via its decimal value's rounding at the call site;
// the raw decimal is exposed through StorageGBLimit.
func (t Tier) Limit(metric enums.UsageMetric) (int64, bool) {
	switch metric {
	case enums.UsageMetricAICalls:
		return t.AICallsLimit, true
	case enums.UsageMetricRenderMinutes:
		return t.RenderMinutesLimit, true
	default:
		return 0, false
	}
}

// Catalog is the static table of plan tiers. It is immutable after
// construction and safe for concurrent reads.
type Catalog struct {
	tiers []Tier
	logg  *logger.Logger
}

func defaults() []Tier {
	return []Tier{
		{
			Name:               enums.PlanTierFree,
			MonthlyPriceCents:  0,
			AICallsLimit:       50,
			RenderMinutesLimit: 10,
			StorageGBLimit:     decimal.NewFromFloat(1.0),
		},
		{
			Name:               enums.PlanTierPro,
			MonthlyPriceCents:  2900,
			AICallsLimit:       1000,
			RenderMinutesLimit: 120,
			StorageGBLimit:     decimal.NewFromFloat(10.0),
		},
		{
			Name:               enums.PlanTierEnterprise,
			MonthlyPriceCents:  9900,
			AICallsLimit:       Unlimited,
			RenderMinutesLimit: Unlimited,
			StorageGBLimit:     decimal.NewFromFloat(100.0),
		},
	}
}

// NewCatalog builds the catalog from compiled defaults plus the
// configured Stripe price ids.
func NewCatalog(cfg config.PlansConfig, logg *logger.Logger) *Catalog {
	tiers := defaults()
	for i := range tiers {
		switch tiers[i].Name {
		case enums.PlanTierPro:
			tiers[i].StripePriceID = cfg.ProPriceID
		case enums.PlanTierEnterprise:
			tiers[i].StripePriceID = cfg.EnterprisePriceID
		}
	}
	return &Catalog{tiers: tiers, logg: logg}
}

// List returns all tiers in ascending price order.
func (c *Catalog) List() []Tier {
	out := make([]Tier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// Get resolves a tier by name. Unknown names resolve to the free tier;
// the catalog fails open to least privilege and never errors.
func (c *Catalog) Get(name enums.PlanTier) Tier {
	for _, tier := range c.tiers {
		if tier.Name == name {
			return tier
		}
	}
	return c.tiers[0]
}

// ResolveByPriceID maps a Stripe price id onto a tier name. A price id
// with no catalog entry resolves to free; the provider keeps billing the
// real price, so this downgrade is logged loudly for alerting.
func (c *Catalog) ResolveByPriceID(ctx context.Context, priceID string) enums.PlanTier {
	if priceID != "" {
		for _, tier := range c.tiers {
			if tier.StripePriceID != "" && tier.StripePriceID == priceID {
				return tier.Name
			}
		}
	}
	if c.logg != nil {
		c.logg.Warn(c.logg.WithField(ctx, "price_id", priceID),
			"stripe price id not in plan catalog, falling back to free tier")
	}
	return enums.PlanTierFree
}
