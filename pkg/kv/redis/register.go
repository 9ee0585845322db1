package redis

import (
	"fmt"

	"github.com/hylo-so/hylo-engine/pkg/kv"
)

// The API server and hyloctl publish must share a database for kv snapshot
// sources to observe published snapshots.
func init() {
	kv.RegisterBackend(kv.BackendRedis, fromConfig)
}

func fromConfig(cfg kv.Config) (kv.Store, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("%w: redis backend needs HYLO_REDIS_URL", kv.ErrBackendUnavailable)
	}
	return New(cfg.RedisURL)
}
