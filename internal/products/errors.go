package products

import "errors"

var (
	// ErrNotFound is returned when a product is missing so handlers can respond with 404.
	ErrNotFound = errors.New("product not found")
	// ErrConflict is returned when a product name is already taken.
	ErrConflict = errors.New("product name already used")
	// ErrInvalid marks input rejected before touching storage.
	ErrInvalid = errors.New("invalid product")
	// ErrStorage hides engine specific failures from callers.
	ErrStorage = errors.New("storage failure")
	// ErrOfferTaken means an offer id is already stored under another product.
	ErrOfferTaken = errors.New("offer id belongs to another product")
	// ErrRemote means the offers service did not accept a registration.
	ErrRemote = errors.New("offers service registration failed")
)
