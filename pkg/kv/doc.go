// Package kv provides the key-value store used by the quote service to share
// protocol snapshots and cached quotes between processes.
//
// Two backends are registered by importing their packages for side effects:
//
//	import (
//		_ "github.com/hylo-so/hylo-engine/pkg/kv/memory"
//		_ "github.com/hylo-so/hylo-engine/pkg/kv/redis"
//	)
//
// A redis backend is wrapped in a FailoverStore that switches to the in-memory
// store while redis is unreachable and promotes redis back once it answers
// pings again.
package kv
