package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/NanamiAkari/attire-ai-explorer/cache"
	"github.com/NanamiAkari/attire-ai-explorer/config"
	"github.com/NanamiAkari/attire-ai-explorer/database"
	"github.com/NanamiAkari/attire-ai-explorer/feature"
	"github.com/NanamiAkari/attire-ai-explorer/logging"
	"github.com/NanamiAkari/attire-ai-explorer/matcher"
	"github.com/NanamiAkari/attire-ai-explorer/scanner"
	"github.com/NanamiAkari/attire-ai-explorer/signalhandler"
	"github.com/NanamiAkari/attire-ai-explorer/tags"
	"github.com/NanamiAkari/attire-ai-explorer/types"
	"github.com/NanamiAkari/attire-ai-explorer/utils"
)

type globalFlags struct {
	configPath string
	dbPath     string
	debug      bool
	logFile    string
}

func (g *globalFlags) setup(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to yaml config file")
	cmd.PersistentFlags().StringVar(&g.dbPath, "db", "", "Path to the garment index database")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&g.logFile, "logfile", "attire-explorer.log", "Debug log file path")
}

// load resolves config and debug logging for a command invocation.
func (g *globalFlags) load() (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return cfg, err
	}

	if g.dbPath != "" {
		cfg.Database.Path = g.dbPath
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = utils.GetDefaultDatabasePath()
	}

	if g.debug {
		if err := logging.SetupLogger(g.logFile); err != nil {
			fmt.Printf("Warning: Failed to setup logging: %v\n", err)
		} else {
			fmt.Printf("Debug mode enabled. Logging to: %s\n", g.logFile)
		}
	}

	return cfg, nil
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "attire-explorer",
		Short:         "Visual similarity search for garment imagery",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.setup(root)

	root.AddCommand(newIndexCmd(flags))
	root.AddCommand(newSearchCmd(flags))
	root.AddCommand(newCacheCmd(flags))
	return root
}

func newIndexCmd(flags *globalFlags) *cobra.Command {
	var folder, prefix string
	var force, tag bool
	var workers int

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index a folder of garment images",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			defer logging.CloseLogger()

			info, err := os.Stat(folder)
			if err != nil {
				return fmt.Errorf("cannot access folder path %s: %v", folder, err)
			}
			if !info.IsDir() {
				return fmt.Errorf("path is not a directory: %s", folder)
			}

			ctx, cancel := signalhandler.WithCancellation(context.Background())
			defer cancel()

			db, err := initDatabaseWithRetry(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			var tagger tags.Tagger
			if tag {
				if cfg.Tagger.Endpoint == "" {
					return fmt.Errorf("--tag requires a tagger endpoint in the config file")
				}
				tagger = tags.NewClient(cfg.Tagger)
			}

			if workers < 1 {
				workers = signalhandler.GetOptimalProcs()
			}

			startTime := time.Now()
			err = scanner.ScanAndStoreFolder(ctx, db, scanner.ScanOptions{
				FolderPath:   folder,
				SourcePrefix: prefix,
				ForceRewrite: force,
				DebugMode:    flags.debug,
				MaxWorkers:   workers,
				Tagger:       tagger,
			})
			if err != nil {
				return fmt.Errorf("error indexing folder: %v", err)
			}

			fmt.Printf("Total execution time: %v\n", time.Since(startTime))
			fmt.Printf("Database: %s\n", cfg.Database.Path)

			if stats, err := database.GetIndexStats(db, prefix); err == nil && stats != nil {
				fmt.Printf("\nSummary:\n")
				fmt.Printf("- Total images indexed: %d\n", stats.TotalRecords)
				fmt.Printf("- Images with tags: %d\n", stats.TaggedCount)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&folder, "folder", "", "Path to folder containing images to index")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Source prefix for indexed records")
	cmd.Flags().BoolVar(&force, "force", false, "Force rewrite of existing entries")
	cmd.Flags().BoolVar(&tag, "tag", false, "Call the tagging service for each image")
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker count (default: derived from CPU count)")
	cmd.MarkFlagRequired("folder")
	return cmd
}

func newSearchCmd(flags *globalFlags) *cobra.Command {
	var imagePath, prefix string
	var threshold float64
	var limit int
	var useTags bool

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the index for images similar to a query image",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			defer logging.CloseLogger()

			if _, err := os.Stat(imagePath); os.IsNotExist(err) {
				return fmt.Errorf("query image does not exist: %s", imagePath)
			}
			if _, err := os.Stat(cfg.Database.Path); os.IsNotExist(err) {
				return fmt.Errorf("database does not exist: %s (run the index command first)", cfg.Database.Path)
			}
			if !cmd.Flags().Changed("threshold") {
				threshold = cfg.Search.Threshold
			}
			if err := utils.ValidateThreshold(threshold); err != nil {
				return err
			}
			if !cmd.Flags().Changed("limit") {
				limit = cfg.Search.Limit
			}

			ctx, cancel := signalhandler.WithCancellation(context.Background())
			defer cancel()

			db, err := database.OpenDatabase(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("error opening database: %v", err)
			}
			defer db.Close()

			candidates, err := loadCandidates(db, prefix)
			if err != nil {
				return err
			}

			storage, closeStorage, err := openCacheStorage(cfg, db)
			if err != nil {
				return err
			}
			defer closeStorage()

			m := matcher.New(feature.NewLoader(), cache.New(storage))

			fmt.Printf("Searching %d indexed garments...\n", len(candidates))
			onProgress := func(current, total int) {
				fmt.Printf("\rMatching: %d/%d", current, total)
			}
			opts := matcher.Options{Threshold: threshold}
			startTime := time.Now()

			if useTags {
				if cfg.Tagger.Endpoint == "" {
					return fmt.Errorf("--tags requires a tagger endpoint in the config file")
				}
				queryData, err := os.ReadFile(imagePath)
				if err != nil {
					return fmt.Errorf("read query image: %v", err)
				}
				queryTags, err := tags.NewClient(cfg.Tagger).Tag(ctx, queryData)
				if err != nil {
					return fmt.Errorf("tag query image: %v", err)
				}

				results, err := m.MatchWithTags(ctx, imagePath, queryTags, candidates, opts, onProgress)
				if err != nil {
					return fmt.Errorf("search failed: %v", err)
				}
				printCombinedResults(results, limit)
			} else {
				results, err := m.Match(ctx, imagePath, candidates, opts, onProgress)
				if err != nil {
					return fmt.Errorf("search failed: %v", err)
				}
				printResults(results, limit)
			}

			fmt.Printf("\nTotal search time: %v\n", time.Since(startTime))
			return nil
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "Path to the query image")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Filter candidates by source prefix")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.5, "Similarity threshold (0.0-1.0)")
	cmd.Flags().IntVar(&limit, "limit", 5, "Maximum number of results to display")
	cmd.Flags().BoolVar(&useTags, "tags", false, "Re-rank results by attribute tag overlap")
	cmd.MarkFlagRequired("image")
	return cmd
}

func newCacheCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the feature cache",
	}

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached feature vectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			defer logging.CloseLogger()

			db, err := database.OpenDatabase(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("error opening database: %v", err)
			}
			defer db.Close()

			storage, closeStorage, err := openCacheStorage(cfg, db)
			if err != nil {
				return err
			}
			defer closeStorage()

			if err := cache.New(storage).Clear(); err != nil {
				return fmt.Errorf("clear cache: %v", err)
			}
			fmt.Println("Feature cache cleared.")
			return nil
		},
	}

	cmd.AddCommand(clear)
	return cmd
}

// initDatabaseWithRetry opens the index database, retrying transient
// failures the way slow network mounts need.
func initDatabaseWithRetry(dbPath string) (*sql.DB, error) {
	const maxRetries = 3
	var db *sql.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = database.InitDatabase(dbPath)
		if err == nil {
			return db, nil
		}
		if i < maxRetries-1 {
			logging.LogWarning("error initializing database (attempt %d/%d): %v - retrying", i+1, maxRetries, err)
			time.Sleep(time.Second * time.Duration(i+1))
		}
	}
	return nil, fmt.Errorf("error initializing database after %d attempts: %v", maxRetries, err)
}

// loadCandidates turns index records into matcher candidates, carrying
// stored features and tags so the matcher skips re-decoding.
func loadCandidates(db *sql.DB, prefix string) ([]matcher.Candidate, error) {
	records, err := database.LoadGarments(db, prefix)
	if err != nil {
		return nil, fmt.Errorf("load index: %v", err)
	}

	candidates := make([]matcher.Candidate, 0, len(records))
	for _, rec := range records {
		recTags, err := scanner.DecodeRecordTags(rec)
		if err != nil {
			logging.LogWarning("%v", err)
		}
		candidates = append(candidates, matcher.Candidate{
			ID:       rec.ID,
			ImageURL: rec.ImageURL,
			Features: rec.Features,
			Tags:     recTags,
		})
	}
	return candidates, nil
}

// openCacheStorage builds the configured cache storage backend. The returned
// close function releases backend resources (a no-op for memory and sqlite,
// whose *sql.DB is owned by the caller).
func openCacheStorage(cfg config.Config, db *sql.DB) (cache.Storage, func(), error) {
	switch cfg.Cache.Backend {
	case "", "sqlite":
		storage, err := cache.NewSQLiteStorage(db)
		if err != nil {
			return nil, nil, err
		}
		return storage, func() {}, nil
	case "redis":
		storage, err := cache.NewRedisStorage(cfg.Cache.Redis)
		if err != nil {
			return nil, nil, err
		}
		return storage, func() { storage.Close() }, nil
	case "memory":
		return cache.NewMemoryStorage(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

func printResults(results []types.SimilarityResult, limit int) {
	fmt.Println("\n\nTop Matches:")
	if len(results) == 0 {
		fmt.Println("No matches found.")
		return
	}
	for i := 0; i < limit && i < len(results); i++ {
		fmt.Printf("%d. Image: %s\n", i+1, results[i].ImageURL)
		fmt.Printf("   Similarity: %.4f\n", results[i].Similarity)
	}
}

func printCombinedResults(results []types.CombinedResult, limit int) {
	fmt.Println("\n\nTop Matches (tag re-ranked):")
	if len(results) == 0 {
		fmt.Println("No matches found.")
		return
	}
	for i := 0; i < limit && i < len(results); i++ {
		fmt.Printf("%d. Image: %s\n", i+1, results[i].ImageURL)
		fmt.Printf("   Combined: %.4f (vector: %.4f, tags: %.1f)\n",
			results[i].CombinedScore, results[i].Similarity, results[i].TagSimilarity)
	}
}
