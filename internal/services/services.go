// Package services orchestrates the ledger store, the pure engines and the
// outbound adapters for the HTTP server, the worker and the CLI.
package services

import (
	"context"
	"log/slog"
	"sort"
)

// Publisher enqueues report refreshes. *amqp.Client satisfies it.
type Publisher interface {
	PublishReportRefresh(ctx context.Context, ownerID int64, period, reason string) error
}

// Invalidator drops cached projections after a write.
type Invalidator interface {
	Invalidate(owner int64)
	InvalidateAll()
}

// notifier fans a write out to the projection cache and the refresh queue.
// Publish failures are logged, the write has already been committed.
type notifier struct {
	publisher Publisher
	cache     Invalidator
}

func (n notifier) changed(ctx context.Context, owner int64, reason string, periods ...string) {
	if n.cache != nil {
		n.cache.Invalidate(owner)
	}
	if n.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping report refresh", "owner_id", owner, "reason", reason)
		return
	}
	for _, p := range distinct(periods) {
		if err := n.publisher.PublishReportRefresh(ctx, owner, p, reason); err != nil {
			slog.ErrorContext(ctx, "Failed to publish report refresh",
				"owner_id", owner,
				"period", p,
				"error", err)
		}
	}
}

func distinct(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
