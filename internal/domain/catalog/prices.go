package catalog

import (
	"fmt"
	"strings"

	"career-advisor-platform/internal/domain"
	"career-advisor-platform/internal/domain/model"
)

// PriceEntry binds one provider price/plan id to a tier and billing cycle.
type PriceEntry struct {
	Provider model.PaymentProvider
	Tier     model.TierID
	Cycle    model.BillingCycle
	PriceID  string
}

type priceKey struct {
	provider model.PaymentProvider
	tier     model.TierID
	cycle    model.BillingCycle
}

type priceRef struct {
	tier  model.TierID
	cycle model.BillingCycle
}

// PriceTable is an exact-match, two-way lookup between provider price ids
// and (tier, cycle). Ids must match what is registered with each provider.
type PriceTable struct {
	forward map[priceKey]string
	reverse map[model.PaymentProvider]map[string]priceRef
}

func NewPriceTable(entries []PriceEntry) (*PriceTable, error) {
	pt := &PriceTable{
		forward: make(map[priceKey]string, len(entries)),
		reverse: map[model.PaymentProvider]map[string]priceRef{},
	}
	for _, e := range entries {
		id := strings.TrimSpace(e.PriceID)
		if id == "" || !e.Tier.IsPaid() {
			return nil, fmt.Errorf("price table: bad entry %+v: %w", e, domain.ErrInvalidArgument)
		}
		k := priceKey{e.Provider, e.Tier, e.Cycle}
		if _, dup := pt.forward[k]; dup {
			return nil, fmt.Errorf("price table: duplicate %s/%s/%s: %w", e.Provider, e.Tier, e.Cycle, domain.ErrInvalidArgument)
		}
		rev := pt.reverse[e.Provider]
		if rev == nil {
			rev = map[string]priceRef{}
			pt.reverse[e.Provider] = rev
		}
		if _, dup := rev[id]; dup {
			return nil, fmt.Errorf("price table: price id %q mapped twice for %s: %w", id, e.Provider, domain.ErrInvalidArgument)
		}
		pt.forward[k] = id
		rev[id] = priceRef{tier: e.Tier, cycle: e.Cycle}
	}
	return pt, nil
}

// PriceID returns the configured provider id for (tier, cycle).
func (pt *PriceTable) PriceID(p model.PaymentProvider, tier model.TierID, cycle model.BillingCycle) (string, error) {
	id, ok := pt.forward[priceKey{p, tier, cycle}]
	if !ok {
		return "", domain.ErrInvalidArgument
	}
	return id, nil
}

// Resolve maps a provider price id back to its tier. No partial matching.
func (pt *PriceTable) Resolve(p model.PaymentProvider, priceID string) (model.TierID, model.BillingCycle, bool) {
	ref, ok := pt.reverse[p][strings.TrimSpace(priceID)]
	return ref.tier, ref.cycle, ok
}

// HasProvider reports whether any price is configured for p.
func (pt *PriceTable) HasProvider(p model.PaymentProvider) bool {
	return len(pt.reverse[p]) > 0
}
