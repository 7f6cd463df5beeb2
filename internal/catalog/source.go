package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"formula-agent/internal/integrations/paramstore"
)

// ParameterName is the key of the catalog document under the parameter prefix.
const ParameterName = "catalog"

// Store serves the catalog from Parameter Store through a Cache.
type Store struct {
	cache *Cache[*Catalog]
}

// NewStore reads the JSON catalog stored at name and keeps it for ttl.
func NewStore(g paramstore.Getter, name string, ttl time.Duration, opts ...CacheOption) (*Store, error) {
	if g == nil {
		return nil, errors.New("catalog: paramstore getter must not be nil")
	}
	fetch := func(ctx context.Context) (*Catalog, error) {
		var c Catalog
		if err := paramstore.GetJSON(ctx, g, name, &c); err != nil {
			return nil, fmt.Errorf("catalog: load %s: %w", name, err)
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return &c, nil
	}
	cache, err := NewCache(fetch, ttl, opts...)
	if err != nil {
		return nil, err
	}
	return &Store{cache: cache}, nil
}

// Catalog returns the current catalog. Callers must not modify it.
func (s *Store) Catalog(ctx context.Context) (*Catalog, error) {
	return s.cache.Get(ctx)
}
