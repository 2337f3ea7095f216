package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/wordsonphone/phrasecurator/pkg/curation/export"
	"github.com/wordsonphone/phrasecurator/pkg/curation/quota"
	"github.com/wordsonphone/phrasecurator/pkg/curation/scoring"
	"github.com/wordsonphone/phrasecurator/pkg/ingest"
	"github.com/wordsonphone/phrasecurator/pkg/search"
	"github.com/wordsonphone/phrasecurator/pkg/util"
)

// subcommand splits "quota set ..." into its action and flag set
func subcommand(group string, args []string, actions string) (string, *flag.FlagSet, *commonFlags) {
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		fmt.Fprintf(os.Stderr, "Usage: phrasecurator %s %s [flags]\n", group, actions)
		os.Exit(1)
	}
	fs := flag.NewFlagSet(group+" "+args[0], flag.ExitOnError)
	return args[0], fs, addCommonFlags(fs)
}

// confirm asks before a bulk mutation unless yes is set
func confirm(yes bool, prompt string) bool {
	if yes {
		return true
	}
	ok, err := util.PromptYesNo(prompt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v (pass -yes to skip confirmation)\n", err)
		os.Exit(1)
	}
	return ok
}

// triState parses "yes", "no" or "" into an optional bool
func triState(v string) (*bool, error) {
	switch strings.ToLower(v) {
	case "":
		return nil, nil
	case "yes", "true":
		b := true
		return &b, nil
	case "no", "false":
		b := false
		return &b, nil
	}
	return nil, fmt.Errorf("expected yes or no, got %q", v)
}

// optionalInt maps a negative flag value to nil
func optionalInt(v int) *int {
	if v < 0 {
		return nil
	}
	return &v
}

// handleQuotaCommand handles the 'quota' subcommand group
func handleQuotaCommand(args []string) {
	action, fs, flags := subcommand("quota", args, "status|set|bulk|recommend")
	category := fs.String("category", "", "Only show this category")
	yes := fs.Bool("yes", false, "Do not ask for confirmation")
	fs.Parse(args[1:])

	a := mustApp(flags)
	defer a.close()
	ctx := context.Background()

	tracker, err := a.quotaTracker(ctx)
	if err != nil {
		fail(flags.jsonOutput, err)
	}

	switch action {
	case "status":
		var statuses []quota.CategoryStatus
		if *category != "" {
			var s *quota.CategoryStatus
			if s, err = tracker.GetCategoryStatus(ctx, *category); err == nil {
				statuses = append(statuses, *s)
			}
		} else {
			statuses, err = tracker.GetAllStatuses(ctx)
		}
		if err != nil {
			fail(flags.jsonOutput, err)
		}
		if flags.jsonOutput {
			util.PrintJSON(statuses)
			return
		}
		fmt.Printf("%-25s %8s %8s %8s  %s\n", "CATEGORY", "CURRENT", "LIMIT", "USED", "STATUS")
		for _, s := range statuses {
			fmt.Printf("%-25s %8d %8d %7.1f%%  %s\n", s.Category, s.Current, s.Limit, s.Percentage, s.Status)
		}

	case "set":
		if fs.NArg() != 2 {
			fmt.Fprintf(os.Stderr, "Usage: phrasecurator quota set <category> <quota>\n")
			os.Exit(1)
		}
		var limit int
		if _, err := fmt.Sscanf(fs.Arg(1), "%d", &limit); err != nil {
			fail(flags.jsonOutput, fmt.Errorf("invalid quota %q", fs.Arg(1)))
		}
		status, err := tracker.GetCategoryStatus(ctx, fs.Arg(0))
		if err != nil {
			fail(flags.jsonOutput, err)
		}
		if limit < status.Current && !confirm(*yes, fmt.Sprintf("%s already holds %d phrases. Lower its quota to %d?", fs.Arg(0), status.Current, limit)) {
			return
		}
		if _, err := a.lockWriter(ctx); err != nil {
			fail(flags.jsonOutput, err)
		}
		if err := tracker.SetQuota(ctx, fs.Arg(0), limit); err != nil {
			fail(flags.jsonOutput, err)
		}
		if flags.jsonOutput {
			util.PrintJSONSuccess(map[string]interface{}{"category": fs.Arg(0), "quota": limit})
		} else if !flags.quiet {
			fmt.Printf("Quota for %s set to %d\n", fs.Arg(0), limit)
		}

	case "bulk":
		if fs.NArg() != 1 {
			fmt.Fprintf(os.Stderr, "Usage: phrasecurator quota bulk <quotas.json>\n")
			os.Exit(1)
		}
		data, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			fail(flags.jsonOutput, err)
		}
		quotas := make(map[string]int)
		if err := json.Unmarshal(data, &quotas); err != nil {
			fail(flags.jsonOutput, fmt.Errorf("failed to parse %s: %w", fs.Arg(0), err))
		}
		if !confirm(*yes, fmt.Sprintf("Update quotas for %d categories?", len(quotas))) {
			return
		}
		if _, err := a.lockWriter(ctx); err != nil {
			fail(flags.jsonOutput, err)
		}
		if err := tracker.BulkUpdateQuotas(ctx, quotas); err != nil {
			fail(flags.jsonOutput, err)
		}
		if flags.jsonOutput {
			util.PrintJSONSuccess(quotas)
		} else if !flags.quiet {
			fmt.Printf("Updated %d quotas\n", len(quotas))
		}

	case "recommend":
		recs, err := tracker.GetQuotaRecommendations(ctx)
		if err != nil {
			fail(flags.jsonOutput, err)
		}
		if flags.jsonOutput {
			util.PrintJSON(recs)
			return
		}
		if len(recs) == 0 {
			fmt.Println("No quota changes recommended")
		}
		for _, r := range recs {
			fmt.Printf("%-25s %-8s %d -> %d  %s\n", r.Category, r.Action, r.CurrentLimit, r.SuggestedLimit, r.Reason)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown quota action: %s\n", action)
		os.Exit(1)
	}
}

// handleRecencyCommand handles the 'recency' subcommand group
func handleRecencyCommand(args []string) {
	action, fs, flags := subcommand("recency", args, "stats|detect|mark|recommend")
	category := fs.String("category", "", "Only show this category")
	dryRun := fs.Bool("dry-run", false, "List matches without marking them")
	notRecent := fs.Bool("not", false, "Clear the recent flag instead of setting it")
	limit := fs.Int("limit", 10, "Candidates per category")
	yes := fs.Bool("yes", false, "Do not ask for confirmation")
	fs.Parse(args[1:])

	a := mustApp(flags)
	defer a.close()
	ctx := context.Background()

	tracker, err := a.recencyTracker(ctx)
	if err != nil {
		fail(flags.jsonOutput, err)
	}

	switch action {
	case "stats":
		stats, err := tracker.GetRecencyStats(ctx, *category)
		if err != nil {
			fail(flags.jsonOutput, err)
		}
		if flags.jsonOutput {
			util.PrintJSON(stats)
			return
		}
		fmt.Printf("%-25s %7s %7s %8s %8s  %s\n", "CATEGORY", "TOTAL", "RECENT", "SHARE", "TARGET", "STATUS")
		for _, s := range stats.Categories {
			fmt.Printf("%-25s %7d %7d %7.1f%% %7.1f%%  %s\n", s.Category, s.Total, s.Recent, s.Percentage, s.Target, s.Status)
		}
		fmt.Printf("%-25s %7d %7d %7.1f%%\n", "ALL", stats.Total, stats.Recent, stats.Percentage)

	case "detect":
		if !*dryRun {
			if _, err := a.lockWriter(ctx); err != nil {
				fail(flags.jsonOutput, err)
			}
		}
		det, err := tracker.DetectRecentPhrases(ctx, *dryRun)
		if err != nil {
			fail(flags.jsonOutput, err)
		}
		if flags.jsonOutput {
			util.PrintJSON(det)
			return
		}
		for _, c := range det.Candidates {
			fmt.Printf("  %-30s %-25s %s\n", c.Phrase, c.Category, strings.Join(c.Keywords, ", "))
		}
		fmt.Printf("Scanned %d phrases, %d matched, %d marked recent\n", det.Scanned, len(det.Candidates), det.Marked)

	case "mark":
		if fs.NArg() < 1 {
			fmt.Fprintf(os.Stderr, "Usage: phrasecurator recency mark [-not] <id>...\n")
			os.Exit(1)
		}
		ids := make([]uuid.UUID, 0, fs.NArg())
		for _, arg := range fs.Args() {
			id, err := uuid.Parse(arg)
			if err != nil {
				fail(flags.jsonOutput, fmt.Errorf("invalid phrase id %q: %w", arg, err))
			}
			ids = append(ids, id)
		}
		verb := "recent"
		if *notRecent {
			verb = "not recent"
		}
		if len(ids) > 1 && !confirm(*yes, fmt.Sprintf("Mark %d phrases %s?", len(ids), verb)) {
			return
		}
		if _, err := a.lockWriter(ctx); err != nil {
			fail(flags.jsonOutput, err)
		}
		n, err := tracker.BulkMarkRecency(ctx, ids, !*notRecent)
		if err != nil {
			fail(flags.jsonOutput, err)
		}
		if flags.jsonOutput {
			util.PrintJSONSuccess(map[string]interface{}{"updated": n, "recent": !*notRecent})
		} else if !flags.quiet {
			fmt.Printf("Marked %d phrases %s\n", n, verb)
		}

	case "recommend":
		recs, err := tracker.GetRecencyRecommendations(ctx, *limit)
		if err != nil {
			fail(flags.jsonOutput, err)
		}
		if flags.jsonOutput {
			util.PrintJSON(recs)
			return
		}
		if len(recs) == 0 {
			fmt.Println("Every category is within its recency target")
		}
		for _, r := range recs {
			fmt.Printf("%s (%s): %s %d\n", r.Category, r.Status, r.Action, r.Needed)
			for _, p := range r.Candidates {
				fmt.Printf("  %s  %s\n", p.ID, p.Text)
			}
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown recency action: %s\n", action)
		os.Exit(1)
	}
}

// handleExportCommand handles the 'export' subcommand
func handleExportCommand(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	flags := addCommonFlags(fs)
	categories := fs.String("category", "", "Comma-separated categories (default: all)")
	recent := fs.String("recent", "", "Only recent (yes) or non-recent (no) phrases")
	minScore := fs.Int("min-score", -1, "Lowest score to export")
	maxScore := fs.Int("max-score", -1, "Highest score to export")
	limit := fs.Int("limit", 0, "Phrases per category (0: all)")
	shuffle := fs.String("shuffle", "", "Shuffle phrases: yes or no (default from config)")
	seed := fs.Uint64("seed", 0, "Shuffle seed for reproducible exports")
	out := fs.String("out", "", "Output file (default: stdout)")
	fs.Parse(args)

	a := mustApp(flags)
	defer a.close()
	ctx := context.Background()

	recentFilter, err := triState(*recent)
	if err != nil {
		fail(flags.jsonOutput, fmt.Errorf("invalid -recent: %w", err))
	}
	doShuffle := a.cfg.Export.Shuffle
	if s, err := triState(*shuffle); err != nil {
		fail(flags.jsonOutput, fmt.Errorf("invalid -shuffle: %w", err))
	} else if s != nil {
		doShuffle = *s
	}

	filter := export.Filter{
		Recent:   recentFilter,
		MinScore: optionalInt(*minScore),
		MaxScore: optionalInt(*maxScore),
		Limit:    *limit,
		Shuffle:  doShuffle,
		Seed:     *seed,
	}
	for _, c := range strings.Split(*categories, ",") {
		if c = strings.TrimSpace(c); c != "" {
			filter.Categories = append(filter.Categories, c)
		}
	}

	exporter, err := a.exporter(ctx)
	if err != nil {
		fail(flags.jsonOutput, err)
	}
	game, err := exporter.Export(ctx, filter)
	if err != nil {
		fail(flags.jsonOutput, err)
	}

	if *out == "" {
		data, err := export.Marshal(game)
		if err != nil {
			fail(flags.jsonOutput, err)
		}
		os.Stdout.Write(data)
		return
	}
	if err := export.WriteFile(*out, game); err != nil {
		fail(flags.jsonOutput, err)
	}
	total := 0
	for _, g := range game {
		total += len(g.Phrases)
	}
	if flags.jsonOutput {
		util.PrintJSONSuccess(map[string]interface{}{"file": *out, "categories": len(game), "phrases": total})
	} else if !flags.quiet {
		fmt.Printf("Exported %d phrases in %d categories to %s\n", total, len(game), *out)
	}
}

// handleValidateCommand handles the 'validate' subcommand
func handleValidateCommand(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	flags := addCommonFlags(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: phrasecurator validate <file.json>\n")
		os.Exit(1)
	}

	a := mustApp(flags)
	defer a.close()

	raw, err := export.ReadFile(fs.Arg(0))
	if err != nil {
		fail(flags.jsonOutput, err)
	}
	res := export.Validator{MaxPhraseChars: a.cfg.Export.MaxPhraseChars}.Validate(raw)

	if flags.jsonOutput {
		util.PrintJSON(res)
	} else {
		for _, e := range res.Errors {
			fmt.Printf("ERROR   %s\n", e.Error())
		}
		for _, w := range res.Warnings {
			fmt.Printf("WARNING %s\n", w.Error())
		}
		if res.Valid {
			fmt.Printf("Valid: %d categories, %d phrases\n", res.Categories, res.Phrases)
		}
	}
	if !res.Valid {
		os.Exit(1)
	}
}

// readPhraseList reads phrases from a candidate JSON file or a plain list
// with one phrase per line
func readPhraseList(path string) ([]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		candidates, err := ingest.LoadFile(path, "-")
		if err != nil {
			return nil, err
		}
		list := make([]string, len(candidates))
		for i, c := range candidates {
			list[i] = c.Phrase
		}
		return list, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var list []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		list = append(list, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return list, nil
}

// handleRankCommand handles the 'rank' subcommand
func handleRankCommand(args []string) {
	fs := flag.NewFlagSet("rank", flag.ExitOnError)
	flags := addCommonFlags(fs)
	top := fs.Int("top", 0, "Only print the first N phrases")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: phrasecurator rank <phrases.txt|candidates.json>\n")
		os.Exit(1)
	}

	list, err := readPhraseList(fs.Arg(0))
	if err != nil {
		fail(flags.jsonOutput, err)
	}

	a := mustApp(flags)
	defer a.close()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ranked, err := scoring.RankByProminence(ctx, a.lookupClient(), list)
	if err != nil {
		fail(flags.jsonOutput, err)
	}
	if *top > 0 && *top < len(ranked) {
		ranked = ranked[:*top]
	}

	if flags.jsonOutput {
		util.PrintJSON(ranked)
		return
	}
	for i, p := range ranked {
		article := p.Article
		if p.Error != "" {
			article = "error: " + p.Error
		}
		fmt.Printf("%3d. %-35s %10d  %-8s %s\n", i+1, p.Phrase, p.Score, p.Method, article)
	}
}

// handlePMICommand handles the 'pmi' subcommand
func handlePMICommand(args []string) {
	fs := flag.NewFlagSet("pmi", flag.ExitOnError)
	flags := addCommonFlags(fs)
	top := fs.Int("top", 0, "Only print the first N phrases")
	out := fs.String("out", "", "Write phrase counts and PMI as JSON to this file")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: phrasecurator pmi <counts.csv> [phrase...]\n")
		os.Exit(1)
	}

	counts, err := scoring.LoadNgramCountsFile(fs.Arg(0))
	if err != nil {
		fail(flags.jsonOutput, err)
	}

	var ranked []scoring.Cohesion
	if fs.NArg() > 1 {
		for _, phrase := range fs.Args()[1:] {
			if c, ok := counts.PMI(phrase); ok {
				ranked = append(ranked, c)
			} else if !flags.quiet && !flags.jsonOutput {
				fmt.Fprintf(os.Stderr, "No n-gram count for %q\n", phrase)
			}
		}
	} else {
		ranked = counts.All()
	}
	if *top > 0 && *top < len(ranked) {
		ranked = ranked[:*top]
	}

	if *out != "" {
		byPhrase := make(map[string]scoring.Cohesion, len(ranked))
		for _, c := range ranked {
			byPhrase[c.Phrase] = c
		}
		data, err := json.MarshalIndent(byPhrase, "", "  ")
		if err != nil {
			fail(flags.jsonOutput, err)
		}
		if err := os.WriteFile(*out, data, 0644); err != nil {
			fail(flags.jsonOutput, fmt.Errorf("failed to write %s: %w", *out, err))
		}
		if flags.jsonOutput {
			util.PrintJSONSuccess(map[string]interface{}{"file": *out, "phrases": len(ranked)})
		} else if !flags.quiet {
			fmt.Printf("Wrote %d n-grams to %s\n", len(ranked), *out)
		}
		return
	}

	if flags.jsonOutput {
		util.PrintJSON(ranked)
		return
	}
	for i, c := range ranked {
		fmt.Printf("%3d. %-35s %10d  %8.3f\n", i+1, c.Phrase, c.Count, c.PMI)
	}
}

// handleSearchCommand handles the 'search' subcommand
func handleSearchCommand(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	flags := addCommonFlags(fs)
	category := fs.String("category", "", "Only search this category")
	recent := fs.String("recent", "", "Only recent (yes) or non-recent (no) phrases")
	minScore := fs.Int("min-score", -1, "Lowest score to match")
	fuzzy := fs.Int("fuzzy", 0, "Edits allowed per term")
	limit := fs.Int("limit", 20, "Maximum results")
	rebuild := fs.Bool("rebuild", false, "Rebuild the index from the phrase store first")
	fs.Parse(args)

	a := mustApp(flags)
	defer a.close()
	ctx := context.Background()

	idx, err := a.searchIndex()
	if err != nil {
		fail(flags.jsonOutput, err)
	}
	if *rebuild {
		store, err := a.openStore(ctx)
		if err != nil {
			fail(flags.jsonOutput, err)
		}
		n, err := idx.Rebuild(ctx, store)
		if err != nil {
			fail(flags.jsonOutput, err)
		}
		if !flags.quiet && !flags.jsonOutput {
			fmt.Printf("Indexed %d phrases\n", n)
		}
		if fs.NArg() == 0 {
			return
		}
	}

	recentFilter, err := triState(*recent)
	if err != nil {
		fail(flags.jsonOutput, fmt.Errorf("invalid -recent: %w", err))
	}
	res, err := idx.Search(ctx, search.Request{
		Text:      strings.Join(fs.Args(), " "),
		Category:  *category,
		Recent:    recentFilter,
		MinScore:  optionalInt(*minScore),
		Fuzziness: *fuzzy,
		Size:      *limit,
	})
	if err != nil {
		fail(flags.jsonOutput, err)
	}

	if flags.jsonOutput {
		util.PrintJSON(res)
		return
	}
	fmt.Printf("%d matches (%s)\n", res.Total, res.Took)
	for _, h := range res.Hits {
		score := "-"
		if h.Score != nil {
			score = fmt.Sprintf("%d", *h.Score)
		}
		marker := ""
		if h.Recent {
			marker = " [recent]"
		}
		fmt.Printf("  %-35s %-25s %4s%s\n", h.Phrase, h.Category, score, marker)
	}
}

// handleBloomCommand handles the 'bloom' subcommand group
func handleBloomCommand(args []string) {
	action, fs, flags := subcommand("bloom", args, "rebuild|refresh|stats")
	fs.Parse(args[1:])

	a := mustApp(flags)
	defer a.close()
	ctx := context.Background()

	filters, err := a.bloomFilters(ctx)
	if err != nil {
		fail(flags.jsonOutput, err)
	}

	switch action {
	case "rebuild":
		categories := fs.Args()
		if len(categories) == 0 {
			cats, err := a.store.ListCategories(ctx)
			if err != nil {
				fail(flags.jsonOutput, err)
			}
			for _, c := range cats {
				categories = append(categories, c.Name)
			}
		}
		var stats []interface{}
		for _, c := range categories {
			s, err := filters.RebuildCategoryFilter(ctx, c)
			if err != nil {
				fail(flags.jsonOutput, err)
			}
			stats = append(stats, s)
			if !flags.quiet && !flags.jsonOutput {
				fmt.Printf("%-25s %7d phrases, capacity %d, ~%.2f%% false positives\n", s.Category, s.Count, s.Capacity, s.EstimatedFPRate*100)
			}
		}
		a.saveFilters(ctx)
		if flags.jsonOutput {
			util.PrintJSON(stats)
		}

	case "refresh":
		rebuilt, err := filters.RefreshStale(ctx)
		if err != nil {
			fail(flags.jsonOutput, err)
		}
		a.saveFilters(ctx)
		if flags.jsonOutput {
			util.PrintJSON(map[string]interface{}{"rebuilt": rebuilt})
		} else if !flags.quiet {
			fmt.Printf("Rebuilt %d stale filters\n", len(rebuilt))
		}

	case "stats":
		var stats []interface{}
		for _, c := range filters.Categories() {
			s := filters.Stats(c)
			if s == nil {
				continue
			}
			stats = append(stats, s)
			if !flags.jsonOutput {
				stale := ""
				if filters.IsStale(c) {
					stale = " (stale)"
				}
				fmt.Printf("%-25s %7d phrases, capacity %d, ~%.2f%% false positives%s\n", s.Category, s.Count, s.Capacity, s.EstimatedFPRate*100, stale)
			}
		}
		if flags.jsonOutput {
			util.PrintJSON(stats)
		} else if len(stats) == 0 {
			fmt.Println("No filters built yet. Run 'phrasecurator bloom rebuild'")
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown bloom action: %s\n", action)
		os.Exit(1)
	}
}

// handleCacheCommand handles the 'cache' subcommand group
func handleCacheCommand(args []string) {
	action, fs, flags := subcommand("cache", args, "purge|stats")
	olderThan := fs.Duration("older-than", 30*24*time.Hour, "Purge entries scored before this age")
	fs.Parse(args[1:])

	a := mustApp(flags)
	defer a.close()
	ctx := context.Background()

	cache, err := a.openCache()
	if err != nil {
		fail(flags.jsonOutput, err)
	}
	if cache == nil {
		fail(flags.jsonOutput, fmt.Errorf("score cache is disabled in the configuration"))
	}

	switch action {
	case "purge":
		n, err := cache.Purge(ctx, time.Now().Add(-*olderThan))
		if err != nil {
			fail(flags.jsonOutput, err)
		}
		if flags.jsonOutput {
			util.PrintJSONSuccess(map[string]interface{}{"purged": n})
		} else if !flags.quiet {
			fmt.Printf("Purged %d cached scores\n", n)
		}

	case "stats":
		stats, err := cache.Stats(ctx)
		if err != nil {
			fail(flags.jsonOutput, err)
		}
		if flags.jsonOutput {
			util.PrintJSON(stats)
			return
		}
		fmt.Printf("%-25s %8s %8s\n", "CATEGORY", "ENTRIES", "AVERAGE")
		for _, s := range stats {
			fmt.Printf("%-25s %8d %8.1f\n", s.Category, s.Entries, s.AverageScore)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown cache action: %s\n", action)
		os.Exit(1)
	}
}
