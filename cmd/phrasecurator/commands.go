package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/wordsonphone/phrasecurator/pkg/curation/scoring"
	"github.com/wordsonphone/phrasecurator/pkg/ingest"
	"github.com/wordsonphone/phrasecurator/pkg/phrases"
	"github.com/wordsonphone/phrasecurator/pkg/util"
)

// handleSubcommand dispatches a phrasecurator subcommand
func handleSubcommand(cmd string, args []string) {
	switch cmd {
	case "migrate":
		handleMigrateCommand(args)
	case "import":
		handleImportCommand(args)
	case "check":
		handleCheckCommand(args)
	case "score":
		handleScoreCommand(args)
	case "rescore":
		handleRescoreCommand(args)
	case "report":
		handleReportCommand(args)
	case "quota":
		handleQuotaCommand(args)
	case "recency":
		handleRecencyCommand(args)
	case "export":
		handleExportCommand(args)
	case "validate":
		handleValidateCommand(args)
	case "rank":
		handleRankCommand(args)
	case "pmi":
		handlePMICommand(args)
	case "search":
		handleSearchCommand(args)
	case "watch":
		handleWatchCommand(args)
	case "bloom":
		handleBloomCommand(args)
	case "cache":
		handleCacheCommand(args)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		os.Exit(1)
	}
}

// handleMigrateCommand handles the 'migrate' subcommand
func handleMigrateCommand(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	flags := addCommonFlags(fs)
	fs.Parse(args)

	a := mustApp(flags)
	defer a.close()
	ctx := context.Background()

	err := func() error {
		store, err := a.lockWriter(ctx)
		if err != nil {
			return err
		}
		if err := a.db.MigrateToLatest(ctx); err != nil {
			return err
		}
		return store.SeedDefaultCategories(ctx)
	}()
	if err != nil {
		fail(flags.jsonOutput, err)
	}

	if flags.jsonOutput {
		util.PrintJSONSuccess(map[string]interface{}{"migrated": true})
		return
	}
	if !flags.quiet {
		fmt.Println("Schema is up to date and default categories are seeded")
	}
}

// handleImportCommand handles the 'import' subcommand
func handleImportCommand(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	flags := addCommonFlags(fs)
	category := fs.String("category", "", "Category for candidates that name none")
	score := fs.Bool("score", false, "Score candidates and reject those below -min-score")
	minScore := fs.Int("min-score", 0, "Lowest accepted score (default: review threshold)")
	force := fs.Bool("force", false, "Admit candidates into full categories")
	dryRun := fs.Bool("dry-run", false, "Report what would be added without writing")
	skipReddit := fs.Bool("skip-reddit", false, "Skip the Reddit popularity lookup")
	offline := fs.Bool("offline", false, "Score with local heuristics only")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: phrasecurator import [flags] <file.json>\n")
		os.Exit(1)
	}

	candidates, err := ingest.LoadFile(fs.Arg(0), *category)
	if err != nil {
		fail(flags.jsonOutput, err)
	}

	a := mustApp(flags)
	defer a.close()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := a.pipeline(ctx, !*dryRun, *offline)
	if err != nil {
		fail(flags.jsonOutput, err)
	}

	opts := ingest.Options{
		Score:        *score,
		MinScore:     *minScore,
		ScoreOptions: scoring.Options{SkipReddit: *skipReddit},
		Force:        *force,
		DryRun:       *dryRun,
	}
	var progress *util.ProgressBar
	if *score && !flags.quiet && !flags.jsonOutput {
		progress = util.NewProgressBar(len(candidates), "Scoring", os.Stderr)
		last := 0
		opts.OnScored = func(done int) {
			progress.Add(done - last)
			last = done
		}
	}

	report, err := pipeline.Import(ctx, candidates, opts)
	if progress != nil {
		progress.Finish()
	}
	if err != nil && report == nil {
		fail(flags.jsonOutput, err)
	}

	if err == nil && !report.DryRun && report.Added > 0 {
		a.indexPhrases(ctx, report.Phrases)
		a.saveFilters(ctx)
	}

	if flags.jsonOutput {
		util.PrintJSON(report)
	} else if !flags.quiet {
		for _, line := range report.Lines() {
			fmt.Println(line)
		}
	}
	if err != nil {
		fail(flags.jsonOutput, err)
	}
}

// pipeline wires the ingest pipeline. A writing pipeline holds the writer lock.
func (a *app) pipeline(ctx context.Context, write, offline bool) (*ingest.Pipeline, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if write {
		if _, err := a.lockWriter(ctx); err != nil {
			return nil, err
		}
	}
	detector, err := a.detector(ctx)
	if err != nil {
		return nil, err
	}
	quotas, err := a.quotaTracker(ctx)
	if err != nil {
		return nil, err
	}
	scorer, err := a.qualityScorer(offline)
	if err != nil {
		return nil, err
	}
	filters, err := a.bloomFilters(ctx)
	if err != nil {
		return nil, err
	}
	return ingest.NewPipeline(store, detector, quotas, scorer, filters, a.logger), nil
}

// indexPhrases adds freshly stored phrases to the search index. The index is
// a projection, so failures are logged and the import stands.
func (a *app) indexPhrases(ctx context.Context, list []phrases.Phrase) {
	idx, err := a.searchIndex()
	if err != nil {
		a.logger.Warn("Search index unavailable", map[string]interface{}{"error": err.Error()})
		return
	}
	if _, err := idx.IndexPhrases(ctx, list); err != nil {
		a.logger.Warn("Failed to index imported phrases", map[string]interface{}{"error": err.Error()})
	}
}

// handleCheckCommand handles the 'check' subcommand
func handleCheckCommand(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	flags := addCommonFlags(fs)
	similar := fs.Int("similar", 5, "Show up to this many similar phrases from the search index")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintf(os.Stderr, "Usage: phrasecurator check [flags] <category> <phrase>\n")
		os.Exit(1)
	}
	category := fs.Arg(0)
	phrase := strings.Join(fs.Args()[1:], " ")

	a := mustApp(flags)
	defer a.close()
	ctx := context.Background()

	detector, err := a.detector(ctx)
	if err != nil {
		fail(flags.jsonOutput, err)
	}
	decision, err := detector.CheckDuplicate(ctx, phrase, category)
	if err != nil {
		fail(flags.jsonOutput, err)
	}
	quotas, err := a.quotaTracker(ctx)
	if err != nil {
		fail(flags.jsonOutput, err)
	}
	capacity, err := quotas.CanAddPhrase(ctx, category)
	if err != nil {
		fail(flags.jsonOutput, err)
	}

	var neighbours []map[string]interface{}
	if *similar > 0 {
		if idx, err := a.searchIndex(); err == nil {
			hits, err := idx.Similar(ctx, phrase, category, *similar)
			if err != nil {
				a.logger.Warn("Similarity search failed", map[string]interface{}{"error": err.Error()})
			}
			for _, h := range hits {
				neighbours = append(neighbours, map[string]interface{}{"phrase": h.Phrase, "relevance": h.Relevance})
			}
		}
	}

	if flags.jsonOutput {
		util.PrintJSON(map[string]interface{}{
			"duplicate": decision,
			"quota":     capacity,
			"similar":   neighbours,
		})
		return
	}

	if decision.CanAdd {
		fmt.Printf("OK: %q can be added to %s\n", decision.Details.NormalizedPhrase, category)
	} else {
		fmt.Printf("REJECTED (%s): %s\n", decision.Reason, decision.Message)
	}
	if !capacity.CanAdd {
		fmt.Printf("Quota: %s\n", capacity.Message)
	} else if capacity.Warning {
		fmt.Printf("Quota warning: %s\n", capacity.Message)
	}
	if len(neighbours) > 0 {
		fmt.Println("Similar phrases:")
		for _, n := range neighbours {
			fmt.Printf("  %s\n", n["phrase"])
		}
	}
}

// handleScoreCommand handles the 'score' subcommand
func handleScoreCommand(args []string) {
	fs := flag.NewFlagSet("score", flag.ExitOnError)
	flags := addCommonFlags(fs)
	source := fs.String("source", "", "Source provider, selects the weight profile")
	skipReddit := fs.Bool("skip-reddit", false, "Skip the Reddit popularity lookup")
	forceRefresh := fs.Bool("force-refresh", false, "Ignore cached scores")
	offline := fs.Bool("offline", false, "Score with local heuristics only")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintf(os.Stderr, "Usage: phrasecurator score [flags] <category> <phrase>\n")
		os.Exit(1)
	}
	category := fs.Arg(0)
	phrase := strings.Join(fs.Args()[1:], " ")

	a := mustApp(flags)
	defer a.close()

	scorer, err := a.qualityScorer(*offline)
	if err != nil {
		fail(flags.jsonOutput, err)
	}
	result, err := scorer.ScorePhrase(context.Background(), phrase, category, scoring.Options{
		Source:       *source,
		SkipReddit:   *skipReddit,
		ForceRefresh: *forceRefresh,
	})
	if err != nil {
		fail(flags.jsonOutput, err)
	}

	if flags.jsonOutput {
		util.PrintJSON(result)
		return
	}
	printScore(result)
}

func printScore(r *scoring.Result) {
	cached := ""
	if r.Cached {
		cached = " (cached)"
	}
	fmt.Printf("%s [%s]: %d/100 %s, %s%s\n", r.Phrase, r.Category, r.TotalScore, r.Band, r.Verdict, cached)
	for _, name := range []string{
		scoring.ComponentLocal,
		scoring.ComponentKnowledgeBase,
		scoring.ComponentPopularity,
		scoring.ComponentWikipedia,
		scoring.ComponentCategory,
	} {
		if v, ok := r.Breakdown.Components[name]; ok {
			fmt.Printf("  %-14s %3d\n", name, v)
		}
	}
	if r.Breakdown.Signals.Article != "" {
		fmt.Printf("  %-14s %s (%d views)\n", "article", r.Breakdown.Signals.Article, r.Breakdown.Signals.Pageviews)
	}
	for name, msg := range r.Breakdown.Errors {
		fmt.Printf("  ! %s: %s\n", name, msg)
	}
}

// handleRescoreCommand handles the 'rescore' subcommand
func handleRescoreCommand(args []string) {
	fs := flag.NewFlagSet("rescore", flag.ExitOnError)
	flags := addCommonFlags(fs)
	category := fs.String("category", "", "Only rescore this category")
	skipReddit := fs.Bool("skip-reddit", false, "Skip the Reddit popularity lookup")
	forceRefresh := fs.Bool("force-refresh", false, "Ignore cached scores")
	offline := fs.Bool("offline", false, "Score with local heuristics only")
	fs.Parse(args)

	a := mustApp(flags)
	defer a.close()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	updated, err := func() (int, error) {
		store, err := a.lockWriter(ctx)
		if err != nil {
			return 0, err
		}
		list, err := store.ListPhrases(ctx, phrases.Query{Category: *category})
		if err != nil {
			return 0, err
		}
		scorer, err := a.qualityScorer(*offline)
		if err != nil {
			return 0, err
		}

		items := make([]scoring.Item, len(list))
		for i, p := range list {
			items[i] = scoring.Item{Phrase: p.Text, Category: p.Category}
			if p.SourceProvider != nil {
				items[i].Source = *p.SourceProvider
			}
		}

		var progress *util.ProgressBar
		if !flags.quiet && !flags.jsonOutput {
			progress = util.NewProgressBar(len(items), "Rescoring", os.Stderr)
			defer progress.Finish()
		}
		results, err := scorer.ScoreBatch(ctx, items, scoring.BatchOptions{
			Options: scoring.Options{SkipReddit: *skipReddit, ForceRefresh: *forceRefresh},
			OnResult: func(int, *scoring.Result) {
				if progress != nil {
					progress.Add(1)
				}
			},
		})
		if err != nil {
			return 0, err
		}

		scores := make(map[uuid.UUID]int, len(results))
		for i, r := range results {
			if r != nil {
				scores[list[i].ID] = r.TotalScore
			}
		}
		if err := store.UpdateScores(ctx, scores); err != nil {
			return 0, err
		}
		return len(scores), nil
	}()
	if err != nil {
		fail(flags.jsonOutput, err)
	}

	if flags.jsonOutput {
		util.PrintJSONSuccess(map[string]interface{}{"updated": updated})
	} else if !flags.quiet {
		fmt.Printf("Updated %d scores\n", updated)
	}
}

// handleReportCommand handles the 'report' subcommand
func handleReportCommand(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	flags := addCommonFlags(fs)
	category := fs.String("category", "", "Only audit this category")
	fs.Parse(args)

	a := mustApp(flags)
	defer a.close()
	ctx := context.Background()

	detector, err := a.detector(ctx)
	if err != nil {
		fail(flags.jsonOutput, err)
	}
	report, err := detector.GenerateDuplicateReport(ctx, *category)
	if err != nil {
		fail(flags.jsonOutput, err)
	}

	if flags.jsonOutput {
		util.PrintJSON(report)
		return
	}
	fmt.Printf("Phrases: %d in %d first-word groups\n", report.TotalPhrases, report.TotalGroups)
	fmt.Printf("Cross-category phrases: %d\n", report.CrossCategoryPhrases)
	if len(report.FlaggedGroups) > 0 {
		fmt.Printf("\nFirst-word groups over the limit of %d:\n", detector.FirstWordLimit())
		for _, g := range report.FlaggedGroups {
			fmt.Printf("  %-20s %-25s %d\n", g.FirstWord, g.Category, g.Count)
		}
	}
	if len(report.ExactDuplicates) > 0 {
		fmt.Println("\nExact duplicates:")
		for _, g := range report.ExactDuplicates {
			fmt.Printf("  [%s] %s\n", g.Category, strings.Join(g.Phrases, " | "))
		}
	}
}

// handleWatchCommand handles the 'watch' subcommand
func handleWatchCommand(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	flags := addCommonFlags(fs)
	category := fs.String("category", "", "Category for candidates that name none")
	score := fs.Bool("score", false, "Score candidates and reject those below -min-score")
	minScore := fs.Int("min-score", 0, "Lowest accepted score (default: review threshold)")
	skipReddit := fs.Bool("skip-reddit", false, "Skip the Reddit popularity lookup")
	debounce := fs.Duration("debounce", 500*time.Millisecond, "Wait for writes to settle")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: phrasecurator watch [flags] <dir>\n")
		os.Exit(1)
	}

	a := mustApp(flags)
	defer a.close()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := a.pipeline(ctx, true, false)
	if err != nil {
		fail(flags.jsonOutput, err)
	}
	w, err := ingest.NewWatcher(fs.Arg(0), pipeline, ingest.WatchOptions{
		Import: ingest.Options{
			Score:        *score,
			MinScore:     *minScore,
			ScoreOptions: scoring.Options{SkipReddit: *skipReddit},
		},
		DefaultCategory: *category,
		Debounce:        *debounce,
	}, a.logger)
	if err != nil {
		fail(flags.jsonOutput, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case r := <-w.Results():
				if r.Err != nil {
					fmt.Fprintf(os.Stderr, "%s: %v\n", r.Path, r.Err)
					continue
				}
				if r.Report.Added > 0 {
					a.indexPhrases(ctx, r.Report.Phrases)
					a.saveFilters(ctx)
				}
				if !flags.quiet {
					fmt.Printf("%s: added %d of %d\n", r.Path, r.Report.Added, r.Report.Total)
				}
			}
		}
	}()

	if !flags.quiet {
		fmt.Printf("Watching %s for candidate files (Ctrl-C to stop)\n", fs.Arg(0))
	}
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		fail(flags.jsonOutput, err)
	}
}
