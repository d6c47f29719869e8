package offers

import "github.com/valeevte/OfferBooth/internal/products"

// Plan is the minimal set of writes turning a local offer set into the
// remote one.
type Plan struct {
	Delete []string
	Insert []products.Offer
	Update []products.Offer
}

func (p Plan) Empty() bool {
	return len(p.Delete) == 0 && len(p.Insert) == 0 && len(p.Update) == 0
}

// Diff compares the offers of one product by price and stock only; both sides
// belong to the same product. When the remote set repeats an id, the first
// occurrence wins.
func Diff(local, remote []products.Offer) Plan {
	var plan Plan

	remoteIDs := make(map[string]struct{}, len(remote))
	for _, o := range remote {
		remoteIDs[o.ID] = struct{}{}
	}

	localByID := make(map[string]products.Offer, len(local))
	for _, o := range local {
		localByID[o.ID] = o
		if _, ok := remoteIDs[o.ID]; !ok {
			plan.Delete = append(plan.Delete, o.ID)
		}
	}

	seen := make(map[string]struct{}, len(remote))
	for _, o := range remote {
		if _, dup := seen[o.ID]; dup {
			continue
		}
		seen[o.ID] = struct{}{}

		cur, ok := localByID[o.ID]
		switch {
		case !ok:
			plan.Insert = append(plan.Insert, o)
		case !cur.SameQuote(o):
			plan.Update = append(plan.Update, o)
		}
	}

	return plan
}
