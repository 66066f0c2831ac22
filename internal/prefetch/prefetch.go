package prefetch

import (
	"context"

	"go.uber.org/zap"
)

// Metadata is an opaque bag of platform-side attributes for one source id
// (author or channel), merged into the evaluation context
type Metadata map[string]interface{}

// Prefetcher fetches external metadata for a batch of source ids.
// Implementations typically call a platform gateway; failures are always
// tolerated by the caller.
type Prefetcher interface {
	BatchFetch(ctx context.Context, ids []string) (map[string]Metadata, error)
}

// ChunkedFetch fetches metadata for ids in chunks of chunkSize to bound the
// size of each external round-trip. Prefetching is best-effort: a failing
// chunk is logged and skipped, and evaluation proceeds without its metadata.
func ChunkedFetch(ctx context.Context, prefetcher Prefetcher, ids []string, chunkSize int) map[string]Metadata {
	merged := make(map[string]Metadata)
	if prefetcher == nil || len(ids) == 0 {
		return merged
	}
	if chunkSize <= 0 {
		chunkSize = 50
	}

	for start := 0; start < len(ids); start += chunkSize {
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}

		chunk, err := prefetcher.BatchFetch(ctx, ids[start:end])
		if err != nil {
			zap.L().Warn("Metadata prefetch chunk failed, proceeding without it",
				zap.Int("offset", start), zap.Int("size", end-start), zap.Error(err))
			continue
		}
		for id, metadata := range chunk {
			merged[id] = metadata
		}
	}
	return merged
}

// Dedupe returns the unique non-empty ids preserving first-seen order
func Dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
