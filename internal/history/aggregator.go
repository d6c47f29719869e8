// Package history records periodic price statistics per product and keeps a
// bounded number of them.
package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/valeevte/OfferBooth/internal/products"
)

const DefaultMaxRecords = 100

type Store interface {
	ListProducts(ctx context.Context) ([]products.Product, error)
	ListOffers(ctx context.Context, productID string) ([]products.Offer, error)
	InsertPriceRecord(ctx context.Context, r products.PriceRecord) error
	CountPriceRecords(ctx context.Context, productID string) (int, error)
	DeleteOldestPriceRecord(ctx context.Context, productID string) error
	NewestPriceRecordTime(ctx context.Context) (time.Time, error)
}

type Result struct {
	Recorded int
	Skipped  int // no offers, no stock, or offers unreadable
	Evicted  int
	Failed   int
}

type Option func(*Aggregator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

type Aggregator struct {
	store      Store
	maxRecords int
	now        func() time.Time
	log        *zap.Logger

	mu     sync.Mutex
	last   int64
	seeded bool
}

func NewAggregator(store Store, maxRecords int, log *zap.Logger, opts ...Option) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	a := &Aggregator{
		store:      store,
		maxRecords: maxRecords,
		now:        time.Now,
		log:        log.Named("history"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) Name() string { return "price_history" }

func (a *Aggregator) Run(ctx context.Context) error {
	_, err := a.Record(ctx)
	return err
}

// seed raises the stamp floor to the newest stored record once per process,
// so a clock that went back across a restart cannot produce a record older
// than the ones already kept. A failed lookup is retried on the next cycle.
func (a *Aggregator) seed(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.seeded {
		return
	}
	newest, err := a.store.NewestPriceRecordTime(ctx)
	if err != nil {
		a.log.Warn("cannot read newest price record time", zap.Error(err))
		return
	}
	a.last = max(a.last, newest.Unix())
	a.seeded = true
}

// stamp returns the cycle timestamp in whole seconds, never earlier than the
// previous one even if the wall clock steps back.
func (a *Aggregator) stamp() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	sec := a.now().Unix()
	if sec < a.last {
		sec = a.last
	}
	a.last = sec
	return time.Unix(sec, 0).UTC()
}

// Record appends one price record per product with offers in stock and evicts
// the oldest records above the cap.
func (a *Aggregator) Record(ctx context.Context) (Result, error) {
	var res Result

	list, err := a.store.ListProducts(ctx)
	if err != nil {
		a.log.Error("price history aborted: cannot get products", zap.Error(err))
		return res, fmt.Errorf("list products: %w", err)
	}
	if len(list) == 0 {
		a.log.Info("no products to record")
		return res, nil
	}

	a.seed(ctx)
	ts := a.stamp()
	for _, p := range list {
		offers, err := a.store.ListOffers(ctx, p.ID)
		if err != nil {
			a.log.Warn("skip product: cannot get offers", zap.String("product_id", p.ID), zap.Error(err))
			res.Skipped++
			continue
		}

		mean, low, ok := Stats(offers)
		if !ok {
			a.log.Debug("skip product: nothing in stock", zap.String("product_id", p.ID), zap.Int("offers", len(offers)))
			res.Skipped++
			continue
		}

		rec := products.PriceRecord{ProductID: p.ID, Timestamp: ts, MeanPrice: mean, MinPrice: low}
		if err := a.store.InsertPriceRecord(ctx, rec); err != nil {
			a.log.Warn("insert price record failed", zap.String("product_id", p.ID), zap.Error(err))
			res.Failed++
			continue
		}
		res.Recorded++

		evicted, err := a.evict(ctx, p.ID)
		res.Evicted += evicted
		if err != nil {
			a.log.Warn("evict price records failed", zap.String("product_id", p.ID), zap.Error(err))
			res.Failed++
		}
	}

	a.log.Info("price history recorded",
		zap.Int("recorded", res.Recorded),
		zap.Int("skipped", res.Skipped),
		zap.Int("evicted", res.Evicted),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// evict drops the oldest records until the product is back at the cap. In the
// steady state that is exactly one record per insert.
func (a *Aggregator) evict(ctx context.Context, productID string) (int, error) {
	n, err := a.store.CountPriceRecords(ctx, productID)
	if err != nil {
		return 0, err
	}
	evicted := 0
	for ; n > a.maxRecords; n-- {
		if err := a.store.DeleteOldestPriceRecord(ctx, productID); err != nil {
			return evicted, err
		}
		evicted++
	}
	return evicted, nil
}

// Stats returns the stock weighted mean price, rounded to cents, and the
// lowest price of offers. ok is false when there is no stock to weigh.
func Stats(offers []products.Offer) (mean, low float64, ok bool) {
	if len(offers) == 0 {
		return 0, 0, false
	}

	total := decimal.Zero
	stock := int64(0)
	minPrice := decimal.NewFromFloat(offers[0].Price)
	for _, o := range offers {
		price := decimal.NewFromFloat(o.Price)
		total = total.Add(price.Mul(decimal.NewFromInt(int64(o.ItemsInStock))))
		stock += int64(o.ItemsInStock)
		if price.LessThan(minPrice) {
			minPrice = price
		}
	}
	if stock == 0 {
		return 0, 0, false
	}

	mean, _ = total.Div(decimal.NewFromInt(stock)).Round(2).Float64()
	low, _ = minPrice.Float64()
	return mean, low, true
}
