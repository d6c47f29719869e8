package offers

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/valeevte/OfferBooth/internal/offersapi"
	"github.com/valeevte/OfferBooth/internal/products"
)

var errBoom = errors.New("boom")

// memStore is a mutex guarded Store that counts every write.
type memStore struct {
	mu       sync.Mutex
	products []products.Product
	offers   map[string]products.Offer

	listProductsErr error
	listOffersErr   map[string]error

	inserts, updates, deletes int
}

func newMemStore(ps ...products.Product) *memStore {
	return &memStore{
		products:      ps,
		offers:        map[string]products.Offer{},
		listOffersErr: map[string]error{},
	}
}

func (s *memStore) seed(os ...products.Offer) {
	for _, o := range os {
		s.offers[o.ID] = o
	}
}

func (s *memStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts + s.updates + s.deletes
}

func (s *memStore) resetCounters() {
	s.mu.Lock()
	s.inserts, s.updates, s.deletes = 0, 0, 0
	s.mu.Unlock()
}

func (s *memStore) ListProducts(ctx context.Context) ([]products.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listProductsErr != nil {
		return nil, s.listProductsErr
	}
	return append([]products.Product(nil), s.products...), nil
}

func (s *memStore) ListOffers(ctx context.Context, productID string) ([]products.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.listOffersErr[productID]; err != nil {
		return nil, err
	}
	out := []products.Offer{}
	for _, o := range s.offers {
		if o.ProductID == productID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) InsertOffer(ctx context.Context, o products.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	s.offers[o.ID] = o
	return nil
}

func (s *memStore) UpdateOffer(ctx context.Context, o products.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if _, ok := s.offers[o.ID]; ok {
		s.offers[o.ID] = o
	}
	return nil
}

func (s *memStore) DeleteOffer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	delete(s.offers, id)
	return nil
}

// fakeSource serves fixed offer sets per product.
type fakeSource struct {
	mu     sync.Mutex
	offers map[string][]offersapi.Offer
	errs   map[string]error
	calls  map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		offers: map[string][]offersapi.Offer{},
		errs:   map[string]error{},
		calls:  map[string]int{},
	}
}

func (f *fakeSource) set(productID string, os ...offersapi.Offer) {
	f.mu.Lock()
	f.offers[productID] = os
	f.mu.Unlock()
}

func (f *fakeSource) GetOffers(ctx context.Context, productID string) ([]offersapi.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[productID]++
	if err := f.errs[productID]; err != nil {
		return nil, err
	}
	return append([]offersapi.Offer(nil), f.offers[productID]...), nil
}
