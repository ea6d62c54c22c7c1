// Package service provides the implementation of product and sale business logic.
package service

import (
	"context"
	"errors"
	"fmt"

	perrors "github.com/abgdnv/storemanager/internal/errors"
	"github.com/abgdnv/storemanager/internal/store"
)

// ProductService defines the methods for managing products.
// It abstracts the underlying business logic and data access.
type ProductService interface {
	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrWrongID for a malformed id and ErrProductNotFoundResponse if no product exists with the given ID.
	FindByID(ctx context.Context, id string) (*ProductDto, error)

	// FindAll returns all products in insertion order.
	// Returns an empty slice if no products exist.
	FindAll(ctx context.Context) ([]ProductDto, error)

	// Create validates the payload and adds a new product.
	Create(ctx context.Context, in ProductInput) (*ProductDto, error)

	// Update validates the payload and replaces name and quantity of an existing product.
	Update(ctx context.Context, id string, in ProductInput) (*ProductDto, error)

	// DeleteByID removes a product and returns it.
	// Sales referring to the product are left untouched.
	DeleteByID(ctx context.Context, id string) (*ProductDto, error)
}

// ProductDto represents the data transfer object for a product.
type ProductDto struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Quantity int32  `json:"quantity"`
}

// Product implements ProductService.
type Product struct {
	repository store.ProductStore
}

// NewProductService creates a new instance of ProductService with the provided repository.
func NewProductService(repo store.ProductStore) *Product {
	return &Product{
		repository: repo,
	}
}

func (s *Product) FindByID(ctx context.Context, id string) (*ProductDto, error) {
	productID, err := parseID(id, perrors.ErrWrongID)
	if err != nil {
		return nil, err
	}
	product, err := s.repository.FindByID(ctx, productID)
	if err != nil {
		return nil, productError(err, "failed to fetch product by ID %s", id)
	}

	return toProductDto(product), nil
}

func (s *Product) FindAll(ctx context.Context) ([]ProductDto, error) {
	products, err := s.repository.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	productDTOs := make([]ProductDto, len(products))

	for i, item := range products {
		productDTOs[i] = *toProductDto(&item)
	}

	return productDTOs, nil
}

// Create rejects a name already used by another product with ErrProductAlreadyExists.
func (s *Product) Create(ctx context.Context, in ProductInput) (*ProductDto, error) {
	cmd, err := validateProduct(in)
	if err != nil {
		return nil, err
	}
	p, err := s.repository.Create(ctx, cmd.Name, int32(cmd.Quantity))
	if err != nil {
		return nil, productError(err, "failed to create product %q", cmd.Name)
	}

	return toProductDto(p), nil
}

func (s *Product) Update(ctx context.Context, id string, in ProductInput) (*ProductDto, error) {
	productID, err := parseID(id, perrors.ErrWrongID)
	if err != nil {
		return nil, err
	}
	cmd, err := validateProduct(in)
	if err != nil {
		return nil, err
	}
	updated, err := s.repository.Update(ctx, productID, cmd.Name, int32(cmd.Quantity))
	if err != nil {
		return nil, productError(err, "failed to update product with ID %s", id)
	}

	return toProductDto(updated), nil
}

func (s *Product) DeleteByID(ctx context.Context, id string) (*ProductDto, error) {
	productID, err := parseID(id, perrors.ErrWrongID)
	if err != nil {
		return nil, err
	}
	deleted, err := s.repository.DeleteByID(ctx, productID)
	if err != nil {
		return nil, productError(err, "failed to delete product with ID %s", id)
	}

	return toProductDto(deleted), nil
}

// productError attaches the client-facing error matching a store error, keeping the store error in the chain.
func productError(err error, format string, args ...any) error {
	switch {
	case errors.Is(err, perrors.ErrProductNotFound):
		return fmt.Errorf("%w: %w", perrors.ErrProductNotFoundResponse, err)
	case errors.Is(err, perrors.ErrProductExists):
		return fmt.Errorf("%w: %w", perrors.ErrProductAlreadyExists, err)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// toProductDto converts a store.Product to a ProductDto.
func toProductDto(product *store.Product) *ProductDto {
	return &ProductDto{
		ID:       product.ID.String(),
		Name:     product.Name,
		Quantity: product.Quantity,
	}
}
