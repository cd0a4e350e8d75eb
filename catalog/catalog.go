// Package catalog wraps the product endpoints of the backend.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const productsPath = "/products"

// Product as returned by the backend. Price is a decimal string.
type Product struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Price     string    `json:"price"`
	CreatedAt time.Time `json:"createdAt"`
}

// Doer is the subset of api.Client the catalog needs.
type Doer interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, in, out any) error
	Patch(ctx context.Context, path string, in, out any) error
	Delete(ctx context.Context, path string) error
}

// Service lists and edits products.
type Service struct {
	client Doer
}

func NewService(client Doer) *Service {
	return &Service{client: client}
}

type productInput struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// ErrInvalidInput is returned before any request when name or price are
// unusable.
var ErrInvalidInput = errors.New("invalid product input")

// ParsePrice accepts "12.5" as well as "12,5" and rejects negative or
// non-numeric values.
func ParsePrice(raw string) (float64, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	price, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: price %q is not a number", ErrInvalidInput, raw)
	}
	if price < 0 {
		return 0, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	return price, nil
}

func newInput(name, rawPrice string) (productInput, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return productInput{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	price, err := ParsePrice(rawPrice)
	if err != nil {
		return productInput{}, err
	}
	return productInput{Name: name, Price: price}, nil
}

func productPath(id int64) string {
	return productsPath + "/" + strconv.FormatInt(id, 10)
}

// List returns every product.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := s.client.Get(ctx, productsPath, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// Create adds a product. rawPrice follows ParsePrice.
func (s *Service) Create(ctx context.Context, name, rawPrice string) (*Product, error) {
	in, err := newInput(name, rawPrice)
	if err != nil {
		return nil, err
	}

	var created Product
	if err := s.client.Post(ctx, productsPath, in, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Update replaces the name and price of product id.
func (s *Service) Update(ctx context.Context, id int64, name, rawPrice string) (*Product, error) {
	in, err := newInput(name, rawPrice)
	if err != nil {
		return nil, err
	}

	var updated Product
	if err := s.client.Patch(ctx, productPath(id), in, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes product id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.client.Delete(ctx, productPath(id))
}
