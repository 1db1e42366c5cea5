package products

import (
	"context"
	"time"

	"log/slog"

	"product-catalog-platform/shared/cachex"
	"product-catalog-platform/shared/logx"
)

// Events receives committed state transitions. Implementations publish to
// the bus; failures there must not fail the triggering call.
type Events interface {
	ProductCreated(ctx context.Context, p Product)
	ProductUpdated(ctx context.Context, prev Product, p Product)
	ProductDeleted(ctx context.Context, p Product, reason string)
}

type Service struct {
	repo     *Repo
	cache    *cachex.Client
	cacheTTL time.Duration
	events   Events
	logger   logx.Logger
}

func NewService(repo *Repo, cache *cachex.Client, cacheTTL time.Duration, ev Events, logger logx.Logger) *Service {
	return &Service{repo: repo, cache: cache, cacheTTL: cacheTTL, events: ev, logger: logger}
}

func cacheKey(sellerID string, productID string) string {
	return "product:" + sellerID + ":" + productID
}

func (s *Service) Create(ctx context.Context, sellerID string, in ProductInput) (Product, error) {
	p, err := s.repo.Create(ctx, sellerID, in)
	if err != nil {
		return Product{}, err
	}
	s.events.ProductCreated(ctx, p)
	s.setCache(ctx, p)
	return p, nil
}

func (s *Service) Get(ctx context.Context, sellerID string, productID string) (Product, error) {
	if s.cache != nil {
		var cached Product
		hit, err := s.cache.GetJSON(ctx, cacheKey(sellerID, productID), &cached)
		if err != nil {
			s.logger.Warn(ctx, "cache_read_failed", "cache read failed",
				slog.String("product_id", productID),
				slog.String("error", err.Error()),
			)
		} else if hit {
			return cached, nil
		}
	}

	p, err := s.repo.Get(ctx, sellerID, productID)
	if err != nil {
		return Product{}, err
	}
	s.setCache(ctx, p)
	return p, nil
}

func (s *Service) List(ctx context.Context, sellerID string, limit int, offset int) ([]Product, error) {
	return s.repo.List(ctx, sellerID, limit, offset)
}

func (s *Service) Update(ctx context.Context, sellerID string, productID string, in ProductInput) (Product, error) {
	prev, updated, err := s.repo.Update(ctx, sellerID, productID, in)
	if err != nil {
		return Product{}, err
	}
	s.events.ProductUpdated(ctx, prev, updated)
	s.setCache(ctx, updated)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, sellerID string, productID string, reason string) error {
	p, err := s.repo.Delete(ctx, sellerID, productID)
	if err != nil {
		return err
	}
	s.events.ProductDeleted(ctx, p, reason)
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cacheKey(sellerID, productID)); err != nil {
			s.logger.Warn(ctx, "cache_delete_failed", "cache delete failed",
				slog.String("product_id", productID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (s *Service) setCache(ctx context.Context, p Product) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, cacheKey(p.SellerID, p.ID), p, s.cacheTTL); err != nil {
		s.logger.Warn(ctx, "cache_write_failed", "cache write failed",
			slog.String("product_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}
