// Command hyloctl prices Hylo operations offline against a snapshot file,
// renders protocol state and fee curves, and publishes snapshots to the KV
// store the API server reads from.
package main

import (
	"fmt"
	"os"

	"github.com/hylo-so/hylo-engine/pkg/kv"
	_ "github.com/hylo-so/hylo-engine/pkg/kv/memory"
	_ "github.com/hylo-so/hylo-engine/pkg/kv/redis"
)

func main() {
	app := newApp(os.Stdout, func(backend, url string) (kv.Store, error) {
		return kv.NewStoreFromConfig(kv.Config{Backend: kv.Backend(backend), RedisURL: url})
	})
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "hyloctl: %v\n", err)
		os.Exit(1)
	}
}
