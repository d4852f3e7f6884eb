package internal

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthChecker probes the service's hard dependencies, Postgres and the
// object store. Probes share one timeout so a hung dependency cannot stall
// the health endpoint.
type HealthChecker struct {
	pool    *pgxpool.Pool
	storage *S3ObjectStorage
	timeout time.Duration
}

func NewHealthChecker(pool *pgxpool.Pool, storage *S3ObjectStorage, timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{pool: pool, storage: storage, timeout: timeout}
}

// Check probes every configured dependency. Each map entry is "ok" or the
// probe's error text; the bool is false when any probe failed.
func (h *HealthChecker) Check(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make(map[string]string, 2)
	healthy := true

	if h.pool != nil {
		if err := h.pool.Ping(ctx); err != nil {
			results["postgres"] = err.Error()
			healthy = false
		} else {
			results["postgres"] = "ok"
		}
	}
	if h.storage != nil {
		if err := h.storage.Ping(ctx); err != nil {
			results["storage"] = err.Error()
			healthy = false
		} else {
			results["storage"] = "ok"
		}
	}
	return results, healthy
}
