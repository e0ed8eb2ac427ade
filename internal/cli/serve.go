package cli

import (
	"github.com/spf13/cobra"

	"github.com/hirecs/hirecs/internal/server"
	"github.com/hirecs/hirecs/pkg/store"
)

// newServeCmd creates the serve command: run the clustering pipeline as an
// HTTP service with a shared artifact cache and an optional result store.
func newServeCmd() *cobra.Command {
	var (
		addr       string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the clustering pipeline over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}

			artifacts, err := openCache(ctx, cfg.Cache)
			if err != nil {
				logger.Warn("artifact cache unavailable", "err", err)
				artifacts = nil
			} else {
				defer artifacts.Close()
			}

			results := store.NewNullStore()
			if cfg.Server.MongoURI != "" {
				results, err = store.NewMongoStore(ctx, cfg.Server.MongoURI, cfg.Server.MongoDatabase)
				if err != nil {
					return err
				}
				defer results.Close(ctx)
				logger.Info("result store connected", "database", cfg.Server.MongoDatabase)
			}

			return server.New(logger, artifacts, results).ListenAndServe(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, \":8080\")")
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default: hirecs.toml discovery)")
	return cmd
}
