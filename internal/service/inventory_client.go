package service

import (
	"context"
	"time"

	"pricing-service/internal/models"
	"pricing-service/internal/redisclient"
	"pricing-service/internal/store"
	"pricing-service/internal/util"

	"go.uber.org/zap"
)

const inventoryCacheTTL = time.Minute

// InventoryClient reads stock levels from the inventory collaborator. The
// pricing engine never mutates stock; it only needs available quantity and
// the reorder point for the stock_low surge heuristic.
type InventoryClient struct {
	store  *store.Store
	redis  *redisclient.Client
	logger *zap.Logger
}

// NewInventoryClient creates a new inventory client
func NewInventoryClient(store *store.Store, redis *redisclient.Client) *InventoryClient {
	return &InventoryClient{
		store:  store,
		redis:  redis,
		logger: util.NamedLogger("inventory"),
	}
}

// GetInventory reads a product's inventory, Redis fast path with DB fallback.
func (ic *InventoryClient) GetInventory(ctx context.Context, productID int64) (*models.Inventory, error) {
	ctx, span := util.StartSpan(ctx, "InventoryClient.GetInventory")
	defer span.End()

	var cached models.Inventory
	if hit, err := ic.redis.GetCachedInventory(ctx, productID, &cached); err == nil && hit {
		return &cached, nil
	}

	inv, err := ic.store.GetInventory(ctx, productID)
	if err != nil {
		return nil, err
	}

	if err := ic.redis.CacheInventory(ctx, productID, inv, inventoryCacheTTL); err != nil {
		ic.logger.Warn("failed to cache inventory",
			zap.Int64("product_id", productID), zap.Error(err))
	}
	return inv, nil
}
