// Package offers keeps the local offer cache in line with the offers service.
package offers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/valeevte/OfferBooth/internal/offersapi"
	"github.com/valeevte/OfferBooth/internal/products"
)

type Store interface {
	ListProducts(ctx context.Context) ([]products.Product, error)
	ListOffers(ctx context.Context, productID string) ([]products.Offer, error)
	InsertOffer(ctx context.Context, o products.Offer) error
	UpdateOffer(ctx context.Context, o products.Offer) error
	DeleteOffer(ctx context.Context, id string) error
}

// Source yields the authoritative offers of a product.
type Source interface {
	GetOffers(ctx context.Context, productID string) ([]offersapi.Offer, error)
}

// Result counts what one sync cycle did.
type Result struct {
	Products int // products reconciled
	Skipped  int // products left untouched after a read failure
	Inserted int
	Updated  int
	Deleted  int
	Failed   int // writes that returned an error
}

func (r Result) Writes() int {
	return r.Inserted + r.Updated + r.Deleted
}

type Reconciler struct {
	store  Store
	source Source
	log    *zap.Logger
}

func NewReconciler(store Store, source Source, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{store: store, source: source, log: log.Named("sync")}
}

func (r *Reconciler) Name() string { return "sync_offers" }

func (r *Reconciler) Run(ctx context.Context) error {
	_, err := r.Sync(ctx)
	return err
}

// Sync runs one reconciliation cycle. Failing to list products aborts the
// cycle before any write; a product whose offers cannot be read is skipped and
// the cycle moves on to the next one.
func (r *Reconciler) Sync(ctx context.Context) (Result, error) {
	var res Result

	r.log.Info("syncing offers")
	list, err := r.store.ListProducts(ctx)
	if err != nil {
		r.log.Error("offers sync aborted: cannot get products", zap.Error(err))
		return res, fmt.Errorf("list products: %w", err)
	}
	if len(list) == 0 {
		r.log.Info("no products to sync")
		return res, nil
	}

	for _, p := range list {
		remote, err := r.source.GetOffers(ctx, p.ID)
		if err != nil {
			r.log.Warn("skip product: cannot get offers from api", zap.String("product_id", p.ID), zap.Error(err))
			res.Skipped++
			continue
		}

		local, err := r.store.ListOffers(ctx, p.ID)
		if err != nil {
			r.log.Warn("skip product: cannot get offers from storage", zap.String("product_id", p.ID), zap.Error(err))
			res.Skipped++
			continue
		}

		r.apply(ctx, p.ID, Diff(local, fromRemote(p.ID, remote)), &res)
		res.Products++
	}

	r.log.Info("offers synced",
		zap.Int("products", res.Products),
		zap.Int("skipped", res.Skipped),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("deleted", res.Deleted),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// apply runs deletes first, then inserts and updates. Each write commits on
// its own; a failed write is logged and the rest of the plan still runs.
func (r *Reconciler) apply(ctx context.Context, productID string, plan Plan, res *Result) {
	for _, id := range plan.Delete {
		if err := r.store.DeleteOffer(ctx, id); err != nil {
			r.log.Warn("delete offer failed", zap.String("product_id", productID), zap.String("offer_id", id), zap.Error(err))
			res.Failed++
			continue
		}
		res.Deleted++
	}
	for _, o := range plan.Insert {
		if err := r.store.InsertOffer(ctx, o); err != nil {
			r.log.Warn("insert offer failed", zap.String("product_id", productID), zap.String("offer_id", o.ID), zap.Error(err))
			res.Failed++
			continue
		}
		res.Inserted++
	}
	for _, o := range plan.Update {
		if err := r.store.UpdateOffer(ctx, o); err != nil {
			r.log.Warn("update offer failed", zap.String("product_id", productID), zap.String("offer_id", o.ID), zap.Error(err))
			res.Failed++
			continue
		}
		res.Updated++
	}
}

func fromRemote(productID string, remote []offersapi.Offer) []products.Offer {
	out := make([]products.Offer, 0, len(remote))
	for _, o := range remote {
		out = append(out, products.Offer{
			ID:           string(o.ID),
			ProductID:    productID,
			Price:        o.Price,
			ItemsInStock: o.ItemsInStock,
		})
	}
	return out
}
