package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registrar announces new products to the offers service.
type Registrar interface {
	RegisterProduct(ctx context.Context, productID, name, description string) error
}

type Service struct {
	store  Store
	remote Registrar
	log    *zap.Logger
}

func NewService(store Store, remote Registrar, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, remote: remote, log: log.Named("products")}
}

func validate(name, description string) (string, string, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" {
		return "", "", fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if description == "" {
		return "", "", fmt.Errorf("%w: description is required", ErrInvalid)
	}
	return name, description, nil
}

// Register stores a new product and registers it with the offers service. If
// the remote call fails the local row is deleted again.
func (s *Service) Register(ctx context.Context, name, description string) (Product, error) {
	name, description, err := validate(name, description)
	if err != nil {
		return Product{}, err
	}

	p := Product{ID: uuid.NewString(), Name: name, Description: description}
	if err := s.store.InsertProduct(ctx, p); err != nil {
		return Product{}, err
	}

	if err := s.remote.RegisterProduct(ctx, p.ID, p.Name, p.Description); err != nil {
		s.log.Error("remote registration failed, removing product",
			zap.String("product_id", p.ID), zap.Error(err))
		if derr := s.store.DeleteProduct(context.WithoutCancel(ctx), p.ID); derr != nil {
			s.log.Error("compensating delete failed", zap.String("product_id", p.ID), zap.Error(derr))
		}
		return Product{}, fmt.Errorf("%w: %w", ErrRemote, err)
	}

	s.log.Info("product registered", zap.String("product_id", p.ID), zap.String("name", p.Name))
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.store.ListProducts(ctx)
}

func (s *Service) Update(ctx context.Context, id, name, description string) (Product, error) {
	name, description, err := validate(name, description)
	if err != nil {
		return Product{}, err
	}
	p := Product{ID: id, Name: name, Description: description}
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.log.Info("product deleted", zap.String("product_id", id))
	return nil
}

func (s *Service) Offers(ctx context.Context, id string) ([]Offer, error) {
	if _, err := s.store.GetProduct(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListOffers(ctx, id)
}

// History lists the retained price records, newest first.
func (s *Service) History(ctx context.Context, id string) ([]PriceRecord, error) {
	if _, err := s.store.GetProduct(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListPriceRecords(ctx, id)
}
