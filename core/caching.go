package core

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/huangsam/strata/internal/contract"
	"github.com/huangsam/strata/schema"
	"go.uber.org/zap"
)

// currentCacheVersion defines the version of the cached result layout
const currentCacheVersion = 1

// cacheTTL bounds how long a cached logger result is trusted.
const cacheTTL = 7 * 24 * time.Hour

// cachedRun returns a cached result for raw when one exists for the same
// data, rules and chain. Otherwise it runs the chain and stores the result.
func (p *Pipeline) cachedRun(ctx context.Context, raw *schema.Table) (*schema.LoggerResult, error) {
	if p.cache == nil {
		return p.Run(ctx, raw)
	}

	key, err := p.cacheKey(raw)
	if err != nil {
		// Fallback to direct computation
		return p.Run(ctx, raw)
	}

	if result := checkCacheHit(p.cache, key); result != nil {
		zap.L().Debug("cache hit", zap.String("logger", raw.Logger))
		return result, nil
	}

	return p.computeAndStore(ctx, raw, key)
}

// checkCacheHit attempts to retrieve and validate a cached result
func checkCacheHit(store contract.CacheStore, key string) *schema.LoggerResult {
	data, version, ts, err := store.Get(key)
	if err != nil {
		return nil // Cache miss
	}

	// Validate version and staleness
	if version != currentCacheVersion || time.Since(time.Unix(ts, 0)) > cacheTTL {
		return nil
	}
	var result schema.LoggerResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	result.Cached = true
	return &result
}

// computeAndStore runs the chain and caches the result when every variable succeeded.
func (p *Pipeline) computeAndStore(ctx context.Context, raw *schema.Table, key string) (*schema.LoggerResult, error) {
	result, err := p.Run(ctx, raw)
	if err != nil {
		return nil, err
	}
	if result.ErrorCount() > 0 {
		return result, nil
	}

	if data, err := json.Marshal(result); err == nil {
		if err := p.cache.Set(key, raw.Logger, data, currentCacheVersion, time.Now().Unix()); err != nil {
			contract.LogWarn("Failed to store level cache entry", err)
		}
	}
	return result, nil
}

// cacheKey identifies a run of the chain over one raw table.
func (p *Pipeline) cacheKey(raw *schema.Table) (string, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return "", err
	}
	chain, err := json.Marshal(p.chain)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%d:%s:%s:", currentCacheVersion, raw.Logger, p.rules.Digest())
	_, _ = h.Write(chain)
	_, _ = h.Write(data)
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
