package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/hexdecor/api/internal/domain"
	"github.com/hexdecor/api/internal/repositories"
)

// ErrProductNotFound indicates the product record does not exist.
var ErrProductNotFound = errors.New("product: not found")

// InventoryServiceDeps bundles collaborators for the inventory service.
type InventoryServiceDeps struct {
	Inventory repositories.InventoryRepository
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	inventory repositories.InventoryRepository
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewInventoryService wires dependencies into a concrete InventoryService.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Inventory == nil {
		return nil, errors.New("inventory service: inventory repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryService{
		inventory: deps.Inventory,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *inventoryService) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, fmt.Errorf("%w: product id is required", ErrOrderInvalidInput)
	}

	product, err := s.inventory.GetProduct(ctx, productID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

func (s *inventoryService) UpsertProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	product.ID = strings.TrimSpace(product.ID)
	if product.ID == "" {
		return domain.Product{}, fmt.Errorf("%w: product id is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(product.Name) == "" {
		return domain.Product{}, fmt.Errorf("%w: product name is required", ErrOrderInvalidInput)
	}
	if product.Price < 0 || product.Stock < 0 {
		return domain.Product{}, fmt.Errorf("%w: price and stock must not be negative", ErrOrderInvalidInput)
	}
	product.UpdatedAt = s.clock()

	saved, err := s.inventory.UpsertProduct(ctx, product)
	if err != nil {
		return domain.Product{}, fmt.Errorf("upsert product: %w", err)
	}
	s.logger(ctx, "inventory.product.upserted", map[string]any{
		"productId": saved.ID,
		"stock":     saved.Stock,
	})
	return saved, nil
}
