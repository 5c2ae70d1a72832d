package transport

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"forwarder/internal/models"
	"forwarder/internal/providers"
)

const feedCachePrefix = "feed:"

// NormalizeFeedRef reduces a link, @username or bare name to the name the
// backend resolves: everything after the last '/' with a leading '@' removed.
// Invite hashes such as "+AbCd" are kept as is.
func NormalizeFeedRef(ref string) string {
	ref = strings.TrimSpace(ref)
	ref = strings.TrimRight(ref, "/")
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		ref = ref[i+1:]
	}
	return strings.TrimPrefix(ref, "@")
}

type Resolver struct {
	backend FeedResolver
	cache   providers.CacheProviderInterface
	logger  providers.Logger
}

func NewResolver(backend FeedResolver, cache providers.CacheProviderInterface, logger providers.Logger) *Resolver {
	return &Resolver{
		backend: backend,
		cache:   cache,
		logger:  logger,
	}
}

// Resolve maps a configured reference to a feed id. Numeric references are
// taken as ids without asking the backend.
func (r *Resolver) Resolve(ctx context.Context, ref string) (models.FeedID, error) {
	name := NormalizeFeedRef(ref)
	if name == "" {
		return 0, ErrEmptyFeedRef
	}
	if id, err := strconv.ParseInt(name, 10, 64); err == nil {
		return models.FeedID(id), nil
	}

	key := feedCachePrefix + name
	if raw, ok := r.cache.Get(key); ok {
		if id, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
			return models.FeedID(id), nil
		}
	}

	id, err := r.backend.ResolveFeed(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("resolve %q: %w", ref, err)
	}
	r.cache.Set(key, []byte(strconv.FormatInt(int64(id), 10)))
	return id, nil
}

// ResolveAll resolves every reference, logging and skipping the ones that
// fail. Duplicates collapse to the first occurrence.
func (r *Resolver) ResolveAll(ctx context.Context, refs []string) []models.FeedID {
	seen := make(map[models.FeedID]struct{}, len(refs))
	out := make([]models.FeedID, 0, len(refs))
	for _, ref := range refs {
		id, err := r.Resolve(ctx, ref)
		if err != nil {
			r.logger.Warnf(providers.TypeTransport, "Failed to resolve feed %s: %s", ref, err)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
		r.logger.Infof(providers.TypeTransport, "Resolved feed %s -> %d", ref, id)
	}
	return out
}
