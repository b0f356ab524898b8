package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pharmatrace/trace-engine/internal/domain"
	"github.com/pharmatrace/trace-engine/internal/gs1"
	"github.com/pharmatrace/trace-engine/pkg/logging"
	"github.com/pharmatrace/trace-engine/pkg/metrics"
	"github.com/pharmatrace/trace-engine/pkg/resilience"
)

// DefaultPrefixCacheTTL is how long positive and negative lookups are cached
const DefaultPrefixCacheTTL = time.Hour

// PrefixDirectory resolves GS1 company prefixes to their owning party
type PrefixDirectory struct {
	cache      domain.PrefixCache
	registries []domain.PartyRegistry
	breaker    *resilience.CircuitBreaker
	ttl        time.Duration
	logger     *logging.Logger
	metrics    *metrics.Metrics
}

// NewPrefixDirectory queries registries in the given order; the first match wins.
// breaker may be nil.
func NewPrefixDirectory(cache domain.PrefixCache, registries []domain.PartyRegistry, breaker *resilience.CircuitBreaker, ttl time.Duration, logger *logging.Logger, m *metrics.Metrics) *PrefixDirectory {
	if ttl <= 0 {
		ttl = DefaultPrefixCacheTTL
	}
	return &PrefixDirectory{
		cache:      cache,
		registries: registries,
		breaker:    breaker,
		ttl:        ttl,
		logger:     logger.WithComponent("prefix-directory"),
		metrics:    m,
	}
}

// ValidateFormat reports whether prefix is 6 to 12 digits
func (d *PrefixDirectory) ValidateFormat(prefix string) bool {
	return gs1.ValidatePrefixFormat(prefix)
}

// Lookup returns the owner of prefix, or nil when no registry knows it or the
// prefix is malformed. Cache failures degrade to a registry query.
func (d *PrefixDirectory) Lookup(ctx context.Context, prefix string, forceRefresh bool) (*domain.CompanyInfo, error) {
	if !gs1.ValidatePrefixFormat(prefix) {
		return nil, nil
	}

	if !forceRefresh {
		info, found, err := d.cache.Get(ctx, prefix)
		switch {
		case err != nil:
			d.metrics.RecordPrefixLookup("error")
			d.logger.WithError(err).Warn("Prefix cache read failed", "prefix", prefix)
		case found && info == nil:
			d.metrics.RecordPrefixLookup("negative_hit")
			return nil, nil
		case found:
			d.metrics.RecordPrefixLookup("hit")
			return info, nil
		}
	}
	d.metrics.RecordPrefixLookup("miss")

	info, err := d.queryRegistries(ctx, prefix)
	if err != nil {
		return nil, storageErr("lookup company prefix", err)
	}

	if err := d.cache.Set(ctx, prefix, info, d.ttl); err != nil {
		d.logger.WithError(err).Warn("Prefix cache write failed", "prefix", prefix)
	}
	return info, nil
}

func (d *PrefixDirectory) queryRegistries(ctx context.Context, prefix string) (*domain.CompanyInfo, error) {
	for _, registry := range d.registries {
		info, err := d.findInRegistry(ctx, registry, prefix)
		if err != nil {
			d.logger.WithError(err).Error("Party registry lookup failed", "registry", registry.Name(), "prefix", prefix)
			return nil, fmt.Errorf("%s registry: %w", registry.Name(), err)
		}
		if info != nil {
			d.logger.Debug("Company prefix resolved", "prefix", prefix, "registry", registry.Name(), "entityId", info.EntityID)
			return info, nil
		}
	}
	return nil, nil
}

func (d *PrefixDirectory) findInRegistry(ctx context.Context, registry domain.PartyRegistry, prefix string) (*domain.CompanyInfo, error) {
	if d.breaker == nil {
		return registry.FindByPrefix(ctx, prefix)
	}
	result, err := d.breaker.Execute(ctx, func() (interface{}, error) {
		return registry.FindByPrefix(ctx, prefix)
	})
	if err != nil {
		return nil, err
	}
	info, _ := result.(*domain.CompanyInfo)
	return info, nil
}

// Invalidate drops a cached lookup
func (d *PrefixDirectory) Invalidate(ctx context.Context, prefix string) error {
	return d.cache.Delete(ctx, prefix)
}

// ExtractFromIdentifier pulls the company prefix out of an EPC URI or a
// numeric GTIN-14, SSCC-18 or GLN-13. Other numeric lengths fall back to the
// first prefixLength digits. Returns false when no valid prefix can be read.
func ExtractFromIdentifier(identifier string, prefixLength int) (string, bool) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", false
	}

	if strings.HasPrefix(identifier, "urn:") {
		body := identifier[strings.LastIndex(identifier, ":")+1:]
		prefix, _, _ := strings.Cut(body, ".")
		if !gs1.ValidatePrefixFormat(prefix) {
			return "", false
		}
		return prefix, true
	}

	offset := 0
	switch len(identifier) {
	case 14, 18:
		offset = 1
	case 13:
		offset = 0
	}
	if prefixLength < gs1.MinPrefixLength || prefixLength > gs1.MaxPrefixLength || offset+prefixLength > len(identifier) {
		return "", false
	}
	prefix := identifier[offset : offset+prefixLength]
	if !gs1.ValidatePrefixFormat(prefix) {
		return "", false
	}
	return prefix, true
}

// ExtractFromIdentifier is the method form of the package function
func (d *PrefixDirectory) ExtractFromIdentifier(identifier string, prefixLength int) (string, bool) {
	return ExtractFromIdentifier(identifier, prefixLength)
}
