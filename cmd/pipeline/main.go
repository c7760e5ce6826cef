// The pipeline binary runs one summarization pass from the command line
// and prints the per-tier accounting.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"legisum/internal/app"
	"legisum/internal/config"
	"legisum/internal/pipeline"
	"legisum/internal/prompt"
	"legisum/internal/summary"
)

func main() {
	style := flag.String("style", "concise", "summary style: "+strings.Join(prompt.StyleNames(), " | "))
	scopeFlag := flag.String("scope", "all", `entities to process: "all" or comma-separated kind:id refs`)
	engineFlag := flag.String("engine", "", "override PIPELINE_ENGINE (local | gemini | fake)")
	dbFlag := flag.String("db", "", "override PIPELINE_DB (sqlite path or postgres dsn)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *engineFlag != "" {
		cfg.Engine = *engineFlag
	}
	if *dbFlag != "" {
		cfg.DBPath = *dbFlag
	}

	scope, err := pipeline.ParseScope(*scopeFlag)
	if err != nil {
		log.Fatalf("scope: %v", err)
	}

	st, err := app.OpenStore(cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	eng, err := app.BuildEngine(cfg)
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}
	defer eng.Close()

	archive, err := app.BuildArchive(cfg)
	if err != nil {
		log.Fatalf("build archive: %v", err)
	}

	runner, err := pipeline.NewRunner(pipeline.Config{
		Store:   st,
		Engine:  eng,
		Cache:   summary.NewCache(st, cfg.ClaimTTL),
		Archive: archive,
	})
	if err != nil {
		log.Fatalf("runner: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := runner.Run(ctx, *style, scope)
	printReport(report)
	if runErr != nil {
		log.Printf("run aborted: %v", runErr)
		os.Exit(1)
	}
}

func printReport(r pipeline.RunReport) {
	fmt.Printf("run %s (style=%s, %s)\n", r.RunID, r.Style, r.Finished.Sub(r.Started).Round(time.Millisecond))
	printTier("documents", r.Documents)
	printTier("legislation", r.Legislation)
	printTier("meetings", r.Meetings)
	for _, f := range r.Failures {
		fmt.Printf("  failed %s: %s %s\n", f.Entity, f.Reason, f.Err)
	}
}

func printTier(name string, c pipeline.TierCounts) {
	fmt.Printf("  %-12s created=%d already-current=%d skipped=%d failed=%d\n",
		name, c.Created, c.AlreadyCurrent, c.Skipped, c.Failed)
}
