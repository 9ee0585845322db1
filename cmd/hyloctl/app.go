package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hylo-so/hylo-engine/internal/config"
	"github.com/hylo-so/hylo-engine/internal/fees"
	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/log"
	"github.com/hylo-so/hylo-engine/internal/onchain"
	"github.com/hylo-so/hylo-engine/internal/quote"
	"github.com/hylo-so/hylo-engine/internal/snapshot"
	"github.com/hylo-so/hylo-engine/internal/store"
	"github.com/hylo-so/hylo-engine/pkg/kv"
	"github.com/hylo-so/hylo-engine/pkg/kv/memory"
)

// StoreOpener connects to a KV backend for publish.
type StoreOpener func(backend, url string) (kv.Store, error)

var snapshotFlag = &cli.StringFlag{
	Name:    "snapshot",
	Aliases: []string{"s"},
	Usage:   "snapshot file (yaml or json)",
	Value:   "snapshot.yaml",
	EnvVars: []string{"HYLO_SNAPSHOT_FILE"},
}

var engineFlags = []cli.Flag{
	snapshotFlag,
	&cli.StringFlag{Name: "floor", Usage: "override the depeg floor, e.g. 1.00", EnvVars: []string{"HYLO_STABILITY_FLOOR"}},
	&cli.StringFlag{Name: "max-lst-delta", Usage: "bound on LST price moves between epochs", Value: "0.01", EnvVars: []string{"HYLO_MAX_LST_PRICE_DELTA"}},
	&cli.Uint64Flag{Name: "lst-max-age", Usage: "epochs an LST price may lag", Value: 1, EnvVars: []string{"HYLO_LST_PRICE_MAX_AGE"}},
	&cli.StringFlag{Name: "curves", Usage: "fee curve table (toml); embedded curves when empty", EnvVars: []string{"HYLO_FEE_CURVES_FILE"}},
}

func newApp(out io.Writer, openStore StoreOpener) *cli.App {
	return &cli.App{
		Name:      "hyloctl",
		Usage:     "price Hylo protocol operations against a snapshot",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log engine activity to stderr"},
		},
		Commands: []*cli.Command{
			{
				Name:      "quote",
				Usage:     "quote an operation, e.g. quote JitoSOL hyUSD 1.5",
				ArgsUsage: "<in> <out> <amount>",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "strategy", Usage: "local or reference", Value: onchain.StrategyLocal},
					&cli.BoolFlag{Name: "json", Usage: "print the full quote as JSON"},
				}, engineFlags...),
				Action: quoteAction,
			},
			{
				Name:   "state",
				Usage:  "print the protocol summary of a snapshot as JSON",
				Flags:  engineFlags,
				Action: stateAction,
			},
			{
				Name:  "pairs",
				Usage: "list quotable pairs and whether the current mode allows them",
				Flags: engineFlags,
				Action: func(c *cli.Context) error {
					protocol, cache, err := newProtocol(c)
					if err != nil {
						return err
					}
					defer cache.Close()
					pairs, err := protocol.Pairs(c.Context)
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "IN\tOUT\tOPERATION\tENABLED")
					for _, p := range pairs {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", p.In, p.Out, p.Operation, p.Enabled)
					}
					return tw.Flush()
				},
			},
			{
				Name:  "curves",
				Usage: "print the fee curves, optionally evaluated at a collateral ratio",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "fee curve table (toml); embedded curves when empty"},
					&cli.StringFlag{Name: "cr", Usage: "collateral ratio to evaluate, e.g. 1.35"},
				},
				Action: curvesAction,
			},
			{
				Name:  "publish",
				Usage: "validate a snapshot file and publish it for kv snapshot sources",
				Flags: []cli.Flag{
					snapshotFlag,
					&cli.StringFlag{Name: "backend", Usage: "memory or redis", Value: "redis", EnvVars: []string{"HYLO_KV_BACKEND"}},
					&cli.StringFlag{Name: "redis-url", Value: "redis://127.0.0.1:6379/0", EnvVars: []string{"HYLO_REDIS_URL"}},
					&cli.StringFlag{Name: "key", Value: snapshot.KeyLatest},
				},
				Action: func(c *cli.Context) error {
					snap, err := snapshot.LoadFile(c.String("snapshot"))
					if err != nil {
						return err
					}
					st, err := openStore(c.String("backend"), c.String("redis-url"))
					if err != nil {
						return fmt.Errorf("open store: %w", err)
					}
					defer st.Close()
					if err := snapshot.Publish(c.Context, st, c.String("key"), snap); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "published slot %d epoch %d to %s\n",
						snap.Clock.SlotValue, snap.Clock.EpochValue, c.String("key"))
					return nil
				},
			},
		},
	}
}

func newLogger(c *cli.Context) *zap.SugaredLogger {
	if !c.Bool("verbose") {
		return zap.NewNop().Sugar()
	}
	logger, err := log.NewSugar("dev", nil)
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger
}

// newProtocol wires the same services the API server runs, over an
// in-memory cache and the snapshot file. Callers close the cache.
func newProtocol(c *cli.Context) (*onchain.ProtocolService, *store.Cache, error) {
	cfg := &config.Config{
		Engine: config.EngineConfig{
			StabilityFloor:   c.String("floor"),
			MaxLstPriceDelta: c.String("max-lst-delta"),
			LstPriceMaxAge:   c.Uint64("lst-max-age"),
			CurvesFile:       c.String("curves"),
		},
		Cache: config.CacheConfig{StateTTL: time.Minute},
	}
	opts, err := onchain.OptionsFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(c)
	cache := store.NewCache(memory.New(0), nil, logger, nil)
	protocol := onchain.NewProtocolService(snapshot.NewFileSource(c.String("snapshot")), nil, cache, opts, logger, nil)
	if _, err := protocol.Refresh(c.Context); err != nil {
		cache.Close()
		return nil, nil, err
	}
	return protocol, cache, nil
}

func quoteAction(c *cli.Context) error {
	if c.NArg() != 3 {
		return fmt.Errorf("usage: hyloctl quote <in> <out> <amount>")
	}
	in, err := quote.LookupToken(c.Args().Get(0))
	if err != nil {
		return err
	}
	out, err := quote.LookupToken(c.Args().Get(1))
	if err != nil {
		return err
	}
	amount, err := onchain.ParseAmount(in, c.Args().Get(2))
	if err != nil {
		return err
	}

	protocol, cache, err := newProtocol(c)
	if err != nil {
		return err
	}
	defer cache.Close()
	quotes, err := onchain.NewQuoteService(protocol, cache, c.String("strategy"), time.Minute, newLogger(c), nil)
	if err != nil {
		return err
	}
	q, err := quotes.Quote(c.Context, quote.NewPair(in, out), amount)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, q)
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "operation\t%s\n", q.Operation)
	fmt.Fprintf(tw, "mode\t%s\n", q.Mode)
	fmt.Fprintf(tw, "in\t%s %s\n", q.AmountIn, in)
	fmt.Fprintf(tw, "out\t%s %s\n", q.AmountOut, out)
	fmt.Fprintf(tw, "fee\t%s %s\n", q.Fee, q.FeeMint)
	fmt.Fprintf(tw, "slot\t%d\n", q.Slot)
	return tw.Flush()
}

func stateAction(c *cli.Context) error {
	protocol, cache, err := newProtocol(c)
	if err != nil {
		return err
	}
	defer cache.Close()
	summary, err := protocol.Summary(c.Context)
	if err != nil {
		return err
	}
	return writeJSON(c.App.Writer, summary)
}

func curvesAction(c *cli.Context) error {
	curves, err := loadCurves(c.String("file"))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "version\t%d\n", curves.Version)
	for _, named := range []struct {
		name string
		ctl  *fees.CurveController
	}{{"mint", curves.Mint}, {"redeem", curves.Redeem}} {
		fmt.Fprintf(tw, "%s\tCR\tFEE\n", named.name)
		for _, p := range named.ctl.Curve().Points() {
			fmt.Fprintf(tw, "\t%s\t%s\n", p.X, p.Y)
		}
	}

	if raw := c.String("cr"); raw != "" {
		cr, err := fix.Parse[fix.N9](raw)
		if err != nil {
			return fmt.Errorf("cr: %w", err)
		}
		fmt.Fprintf(tw, "at CR %s\tmint\t%s\n", raw, feeOrErr(curves.Mint, cr))
		fmt.Fprintf(tw, "\tredeem\t%s\n", feeOrErr(curves.Redeem, cr))
	}
	return tw.Flush()
}

func loadCurves(path string) (*fees.Curves, error) {
	if path == "" {
		return fees.DefaultCurves()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return fees.ParseCurves(data)
}

func feeOrErr(ctl *fees.CurveController, cr fix.UFix64[fix.N9]) string {
	fee, err := ctl.Fee(cr)
	if err != nil {
		return "n/a (" + err.Error() + ")"
	}
	return fee.String()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
