package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dictcache"
	"github.com/kailas-cloud/dictcache/internal/config"
	logpkg "github.com/kailas-cloud/dictcache/internal/logger"
)

var (
	envName    string
	baseURL    string
	token      string
	timeout    time.Duration
	redisAddr  string
	jsonOutput bool
	verbose    bool

	client *dictcache.Client
)

func defaultBaseURL() string {
	return os.Getenv("DICTCACHE_BASE_URL")
}

var rootCmd = &cobra.Command{
	Use:          "dictctl <command>",
	Short:        "Inspect catalog dictionaries through the dictcache client",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd == versionCmd {
			return nil
		}
		opts, err := clientOptions()
		if err != nil {
			return err
		}
		c, err := dictcache.New(cmd.Context(), opts...)
		if err != nil {
			return fmt.Errorf("creating client: %w", err)
		}
		client = c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if client != nil {
			client.Close()
			client = nil
		}
	},
}

// clientOptions merges the optional config file with flags. Flags win.
func clientOptions() ([]dictcache.Option, error) {
	var opts []dictcache.Option

	if envName != "" {
		cfg, err := config.Load(envName)
		if err != nil {
			return nil, err
		}
		reg, err := cfg.Registry()
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			dictcache.WithBaseURL(cfg.Upstream.BaseURL),
			dictcache.WithToken(cfg.Upstream.Token),
			dictcache.WithTimeout(time.Duration(cfg.Upstream.TimeoutSec)*time.Second),
			dictcache.WithDictionaries(reg.Entries()...),
		)
	}

	if baseURL != "" {
		opts = append(opts, dictcache.WithBaseURL(baseURL))
	}
	if token != "" {
		opts = append(opts, dictcache.WithToken(token))
	}
	if timeout > 0 {
		opts = append(opts, dictcache.WithTimeout(timeout))
	}
	if redisAddr != "" {
		opts = append(opts, dictcache.WithRedisSnapshot(redisAddr, os.Getenv("DICTCACHE_REDIS_PASSWORD")))
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logpkg.NewLogger("local", level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	opts = append(opts, dictcache.WithLogger(logger.With(zap.String("component", "dictctl"))))
	return opts, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "load upstream and dictionaries from config/<env>.yaml")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", defaultBaseURL(), "catalog API base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("DICTCACHE_TOKEN"), "catalog API bearer token")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "per-request timeout")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "", "read and write snapshots at this Redis address")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log client operations")

	rootCmd.AddGroup(
		&cobra.Group{ID: "dictionaries", Title: "Dictionaries:"},
		&cobra.Group{ID: "structure", Title: "Form structure:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	cobra.EnableCommandSorting = false

	// Dictionaries
	rootCmd.AddCommand(dictionariesCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(itemCmd)

	// Form structure
	rootCmd.AddCommand(structureCmd)
	rootCmd.AddCommand(fieldCmd)

	// System
	rootCmd.AddCommand(preloadCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
