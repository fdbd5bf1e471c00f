package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/kasuganosora/questfolio/cache"
	"github.com/kasuganosora/questfolio/config"
	"github.com/kasuganosora/questfolio/content"
	dbadapter "github.com/kasuganosora/questfolio/db"
	"github.com/kasuganosora/questfolio/importer"
	"github.com/kasuganosora/questfolio/model"
	"github.com/kasuganosora/questfolio/viewcache"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "questfolio-import",
	Short:         "Import portfolio content into a questfolio database",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create tags, projects, quests, sub-quests, issues and pages from a CSV file",
	Long: `Reads rows of

  kind,title,type,status,visibility,parent,description,tags

and creates them in order. Parents are referenced by title; sub-quests name
their quest, issues use project:<title> or quest:<title>. Tags are separated
by ";" and created when missing.

With --dry-run the file is only parsed and checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return runSeed(cmd.Context(), file, dryRun)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "config/config.yaml", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every store call")

	seedCmd.Flags().StringP("file", "f", "", "CSV file to import")
	seedCmd.Flags().Bool("dry-run", false, "Parse and check the file without writing")
	_ = seedCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(seedCmd)
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	return cfg.Build()
}

func runSeed(ctx context.Context, file string, dryRun bool) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	if dryRun {
		rows, err := importer.Parse(f)
		if err != nil {
			return err
		}
		counts := map[string]int{}
		for _, r := range rows {
			counts[r.Kind]++
		}
		printCounts("would create", counts)
		return nil
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}

	svc := content.NewService(db, cfg.Content, logger)
	res, err := importer.New(svc, logger).Import(ctx, f)
	printCounts("created", res.Counts)
	if err != nil {
		return err
	}
	notifyServers(ctx, cfg, logger)
	return nil
}

// notifyServers asks running servers sharing the cache to drop their
// cached views.
func notifyServers(ctx context.Context, cfg *config.Config, logger *zap.Logger) {
	if cfg.Cache.RedisAddr == "" {
		return
	}
	c, err := cache.NewCache(cfg.Cache)
	if err != nil {
		logger.Warn("cache unavailable, servers keep stale views", zap.Error(err))
		return
	}
	defer c.Close()
	ps, err := cache.NewPubSub(cfg.Cache)
	if err != nil {
		logger.Warn("pubsub unavailable, servers keep stale views", zap.Error(err))
		return
	}
	viewcache.New(c, ps, cfg.Cache.ViewTTL, logger).
		Notify(ctx, content.Change{Kind: "import", Action: "update"})
}

func printCounts(verb string, counts map[string]int) {
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("%s %d %s\n", verb, counts[k], k)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
