package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	runpkg "github.com/minisocial/minisocial/internal/cmd/run"
	cfgpkg "github.com/minisocial/minisocial/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "minisocial",
		Short: "minisocial service runner",
		Long:  "minisocial runs the services of the event pipeline: gateway, posts, feed, and notifications.",
	}

	var (
		configPath string
		brokerURL  string
		brokerKind string
		jwtSecret  string
		dataDir    string
		logLevel   string
		logFormat  string
	)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("MSW_CONFIG"), "Path to JSON config file")
	rootCmd.PersistentFlags().StringVar(&brokerURL, "broker-url", "", "Broker URL (amqp://...)")
	rootCmd.PersistentFlags().StringVar(&brokerKind, "broker", "", "Broker kind: amqp|memory")
	rootCmd.PersistentFlags().StringVar(&jwtSecret, "jwt-secret", "", "HMAC secret for token verification")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory for derived stores")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text|json")

	// Flags win over env, env wins over file, file over defaults.
	loadConfig := func() (cfgpkg.Config, error) {
		cfg, err := cfgpkg.Load(configPath)
		if err != nil {
			return cfgpkg.Config{}, fmt.Errorf("load config: %w", err)
		}
		cfgpkg.FromEnv(&cfg)
		if brokerURL != "" {
			cfg.BrokerURL = brokerURL
		}
		if brokerKind != "" {
			cfg.BrokerKind = brokerKind
		}
		if jwtSecret != "" {
			cfg.JWTSecret = jwtSecret
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if logFormat != "" {
			cfg.LogFormat = logFormat
		}
		return cfg, nil
	}

	service := func(use, short string, fn func(context.Context, cfgpkg.Config) error, addr func(*cfgpkg.Config) *string) *cobra.Command {
		var listen string
		cmd := &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				if listen != "" {
					*addr(&cfg) = listen
				}
				return fn(cmd.Context(), cfg)
			},
		}
		cmd.Flags().StringVar(&listen, "addr", "", "Listen address override")
		return cmd
	}

	rootCmd.AddCommand(
		service("gateway", "Run the authenticated reverse proxy", runpkg.Gateway,
			func(c *cfgpkg.Config) *string { return &c.Gateway.Addr }),
		service("posts", "Run the post service (pipeline write path)", runpkg.Posts,
			func(c *cfgpkg.Config) *string { return &c.Posts.Addr }),
		service("feed", "Run the feed service (post-event consumer + read API)", runpkg.Feed,
			func(c *cfgpkg.Config) *string { return &c.Feed.Addr }),
		service("notify", "Run the notification service (consumer, hub, API)", runpkg.Notify,
			func(c *cfgpkg.Config) *string { return &c.Notify.Addr }),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
