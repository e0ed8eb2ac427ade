package cli

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hirecs/hirecs/pkg/cache"
	"github.com/hirecs/hirecs/pkg/config"
	"github.com/hirecs/hirecs/pkg/export"
	"github.com/hirecs/hirecs/pkg/pipeline"
)

// clusterOpts holds the command-line flags for the cluster command.
type clusterOpts struct {
	format     string  // output format: t, c, j, je, jd
	output     string  // output file path (default stdout)
	noValidate bool    // trust the caller, skip link validation
	fast       bool    // quasi-mutual clustering
	shuffle    bool    // randomise construction order
	seed       int64   // shuffle seed; 0 means wall clock
	margin     float64 // modularity profit margin
	noCache    bool    // bypass the artifact cache
	progressUI bool    // live pass-by-pass progress view
	configPath string  // explicit config file
}

// newClusterCmd creates the cluster command: parse a .hig adjacency file,
// run the hierarchical clustering engine and render the hierarchy.
func newClusterCmd() *cobra.Command {
	opts := clusterOpts{}

	cmd := &cobra.Command{
		Use:   "cluster [file.hig]",
		Short: "Cluster an adjacency file into a hierarchy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCluster(cmd, args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "o", "", "output format: t (default), c, j, je, jd")
	cmd.Flags().StringVar(&opts.output, "out", "", "output file (default stdout)")
	cmd.Flags().BoolVarP(&opts.noValidate, "no-validate", "c", false, "trust the input, skip link validation")
	cmd.Flags().BoolVarP(&opts.fast, "fast", "f", false, "quasi-mutual clustering (faster, less strict)")
	cmd.Flags().BoolVarP(&opts.shuffle, "shuffle", "r", false, "randomise node and link order on construction")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "shuffle seed (0 uses the wall clock)")
	cmd.Flags().Float64VarP(&opts.margin, "margin", "m", 0, "modularity profit margin in [-1, 1]; -1 also silences pass tracing")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the artifact cache")
	cmd.Flags().BoolVar(&opts.progressUI, "progress", false, "live pass-by-pass progress view")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "config file (default: hirecs.toml discovery)")

	return cmd
}

// loadConfig resolves the effective configuration for a command.
func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg, _, err := config.Discover()
	return cfg, err
}

// openCache builds the configured artifact cache backend.
func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case "", "file":
		dir, err := cfg.CacheDir()
		if err != nil {
			return nil, err
		}
		return cache.NewFileCache(dir)
	case "redis":
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	case "none":
		return cache.NewNullCache(), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

func runCluster(cmd *cobra.Command, path string, opts *clusterOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("format") {
		opts.format = cfg.Format
	}
	if !cmd.Flags().Changed("margin") {
		opts.margin = cfg.Margin
	}

	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	input, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var artifacts cache.Cache
	if !opts.noCache {
		artifacts, err = openCache(ctx, cfg.Cache)
		if err != nil {
			logger.Warn("artifact cache unavailable", "err", err)
			artifacts = nil
		} else {
			defer artifacts.Close()
		}
	}

	popts := pipeline.Options{
		Format:   format,
		Validate: !opts.noValidate,
		Fast:     opts.fast,
		Shuffle:  opts.shuffle,
		Margin:   opts.margin,
		Logger:   logger,
		Cache:    artifacts,
		TTL:      time.Duration(cfg.Cache.TTLHours) * time.Hour,
	}
	if opts.shuffle && opts.seed != 0 {
		popts.Rand = rand.New(rand.NewSource(opts.seed))
	}

	track := newProgress(logger)
	var res *pipeline.Result
	run := func() error {
		var rerr error
		res, rerr = pipeline.Execute(ctx, input, popts)
		return rerr
	}
	if opts.progressUI && isTerminal() {
		err = withPassProgress(run)
	} else {
		err = run()
	}
	if err != nil {
		return err
	}

	out := os.Stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("create %s: %w", opts.output, err)
		}
		defer f.Close()
		out = f
	}
	if _, err := out.Write(res.Output); err != nil {
		return err
	}

	if res.CacheHit {
		track.done(fmt.Sprintf("Result for %s served from cache", path))
	} else {
		track.done(fmt.Sprintf("Clustered %d nodes into %d clusters (%d roots), mod %g",
			res.Stats.NodeCount, res.Stats.ClusterCount, res.Stats.RootCount, res.Stats.Modularity))
	}
	return nil
}
