package plans

import (
	"context"
	"testing"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/config"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
)

func newTestCatalog() *Catalog {
	return NewCatalog(config.PlansConfig{
		ProPriceID:        "price_pro_123",
		EnterprisePriceID: "price_ent_456",
	}, nil)
}

func TestCatalogGet(t *testing.T) {
	catalog := newTestCatalog()

	pro := catalog.Get(enums.PlanTierPro)
	if pro.MonthlyPriceCents != 2900 {
		t.Fatalf("expected pro price 2900, got %d", pro.MonthlyPriceCents)
	}
	if pro.AICallsLimit != 1000 || pro.RenderMinutesLimit != 120 {
		t.Fatalf("unexpected pro limits: %+v", pro)
	}

	ent := catalog.Get(enums.PlanTierEnterprise)
	if ent.AICallsLimit != Unlimited || ent.RenderMinutesLimit != Unlimited {
		t.Fatalf("expected enterprise compute limits unlimited, got %+v", ent)
	}
}

func TestCatalogGetUnknownFallsBackToFree(t *testing.T) {
	catalog := newTestCatalog()

	tier := catalog.Get(enums.PlanTier("platinum"))
	if tier.Name != enums.PlanTierFree {
		t.Fatalf("expected free fallback, got %s", tier.Name)
	}
}

func TestResolveByPriceID(t *testing.T) {
	catalog := newTestCatalog()
	ctx := context.Background()

	if got := catalog.ResolveByPriceID(ctx, "price_pro_123"); got != enums.PlanTierPro {
		t.Fatalf("expected pro, got %s", got)
	}
	if got := catalog.ResolveByPriceID(ctx, "price_ent_456"); got != enums.PlanTierEnterprise {
		t.Fatalf("expected enterprise, got %s", got)
	}
}

func TestResolveByPriceIDUnknownFallsBackToFree(t *testing.T) {
	catalog := newTestCatalog()

	if got := catalog.ResolveByPriceID(context.Background(), "unknown_id"); got != enums.PlanTierFree {
		t.Fatalf("expected free fallback for unknown price id, got %s", got)
	}
	if got := catalog.ResolveByPriceID(context.Background(), ""); got != enums.PlanTierFree {
		t.Fatalf("expected free fallback for empty price id, got %s", got)
	}
}

func TestCatalogListOrderAndIsolation(t *testing.T) {
	catalog := newTestCatalog()

	tiers := catalog.List()
	if len(tiers) != 3 {
		t.Fatalf("expected 3 tiers, got %d", len(tiers))
	}
	if tiers[0].Name != enums.PlanTierFree || tiers[2].Name != enums.PlanTierEnterprise {
		t.Fatalf("unexpected tier order: %v", tiers)
	}

	tiers[0].AICallsLimit = 999
	if catalog.Get(enums.PlanTierFree).AICallsLimit != 50 {
		t.Fatal("List must return a copy, not the backing slice")
	}
}
