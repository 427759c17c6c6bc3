package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.senan.xyz/table/table"

	"go.senan.xyz/nddedup"
	"go.senan.xyz/nddedup/beets"
	"go.senan.xyz/nddedup/cmd/internal/flags"
	"go.senan.xyz/nddedup/fileutil"
	"go.senan.xyz/nddedup/navidrome"
	"go.senan.xyz/nddedup/notifications"
)

func init() {
	flag := flag.CommandLine
	flag.Usage = func() {
		fmt.Fprintf(flag.Output(), "Usage:\n")
		fmt.Fprintf(flag.Output(), "  $ %s [<options>] load [<export.json>]\n", flag.Name())
		fmt.Fprintf(flag.Output(), "  $ %s [<options>] merge\n", flag.Name())
		fmt.Fprintf(flag.Output(), "  $ %s [<options>] evaluate\n", flag.Name())
		fmt.Fprintf(flag.Output(), "  $ %s [<options>] all [<export.json>]\n", flag.Name())
		fmt.Fprintf(flag.Output(), "  $ %s [<options>] moveext <src> <dest> <ext>...\n", flag.Name())
		fmt.Fprintf(flag.Output(), "\n")
		fmt.Fprintf(flag.Output(), "Options:\n")
		flag.PrintDefaults()
	}
}

func main() {
	defer flags.ExitError()
	var (
		dbPath       = flag.String("navidrome-db", "", "path to the navidrome sqlite database")
		dataDir      = flag.String("data-dir", "data", "directory for state and report files")
		sourceBase   = flag.String("source-base", "", "library base the export paths use")
		targetBase   = flag.String("target-base", "", "library base navidrome indexes")
		libraryRoot  = flag.String("library-root", "", "override the root folder kinds are inferred against")
		beetsCommand = flag.String("beets-command", "beet", "base beet invocation for completeness checks, empty to disable")
		prefExts     = flags.PreferredExts()
		notifs       = flags.Notifications()
		dryRun       = flag.Bool("dry-run", true, "don't write annotations or move files, log what would happen")
		yes          = flag.Bool("yes", false, "continue without prompting when anomalies exist")
	)
	flags.EnvPrefix(nddedup.Name)
	flags.Parse()

	command := flag.Arg(0)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if command == "moveext" {
		src, dest := flag.Arg(1), flag.Arg(2)
		exts := flag.Args()[min(3, flag.NArg()):]
		if src == "" || dest == "" || len(exts) == 0 {
			log.Fatalf("usage: moveext <src> <dest> <ext>...")
		}
		moved, err := fileutil.MoveByExt(src, dest, exts, *dryRun)
		if err != nil {
			log.Fatalf("moving files: %v", err)
		}
		log.Printf("moved %d files", moved)
		return
	}

	switch command {
	case "load", "merge", "evaluate", "all":
	case "":
		flag.Usage()
		os.Exit(2)
	default:
		log.Fatalf("unknown command %q", command)
	}

	if *dbPath == "" {
		log.Fatalf("need a navidrome database path")
	}
	if err := os.MkdirAll(*dataDir, os.ModePerm); err != nil {
		log.Fatalf("create data dir: %v", err)
	}

	db, err := navidrome.Open(*dbPath)
	if err != nil {
		log.Fatalf("open navidrome db: %v", err)
	}
	defer db.Close()

	var checker nddedup.CompletenessChecker
	if *beetsCommand != "" {
		checker = &beets.Client{Command: *beetsCommand}
	}

	cfg := nddedup.Config{
		SourceBase:    *sourceBase,
		TargetBase:    *targetBase,
		LibraryRoot:   *libraryRoot,
		PreferredExts: *prefExts,
		DryRun:        *dryRun,
	}
	proc := nddedup.NewProcessor(cfg, db, checker)

	r := runner{
		proc:    proc,
		notifs:  notifs,
		dataDir: *dataDir,
		export:  flag.Arg(1),
		yes:     *yes,
	}

	var phases []func(context.Context) error
	switch command {
	case "load":
		phases = append(phases, r.load)
	case "merge":
		phases = append(phases, r.loadState, r.merge)
	case "evaluate":
		phases = append(phases, r.loadState, r.evaluate)
	case "all":
		phases = append(phases, r.load, r.merge, r.evaluate)
	}

	for _, phase := range phases {
		if err := phase(ctx); err != nil {
			notifs.Sendf(ctx, notifications.Errors, "%s failed: %v", command, err)
			log.Fatalf("%s: %v", command, err)
		}
	}

	r.report(ctx)
}

type runner struct {
	proc    *nddedup.Processor
	notifs  *notifications.Notifications
	dataDir string
	export  string
	yes     bool
}

func (r *runner) statePath() string  { return filepath.Join(r.dataDir, "state.json") }
func (r *runner) errorsPath() string { return filepath.Join(r.dataDir, "errors.json") }
func (r *runner) reviewPath() string { return filepath.Join(r.dataDir, "review.yaml") }
func (r *runner) exportPath() string {
	if r.export != "" {
		return r.export
	}
	return filepath.Join(r.dataDir, "duplicates.json")
}

func (r *runner) load(ctx context.Context) error {
	if _, err := os.Stat(r.errorsPath()); err == nil {
		if !r.confirm("an errors report from a previous run exists, continue anyway?") {
			return errors.New("aborted by operator")
		}
	}

	dups, err := beets.ReadDuplicates(r.exportPath())
	if err != nil {
		return err
	}
	if err := r.proc.Load(ctx, dups); err != nil {
		return err
	}
	if err := r.save(); err != nil {
		return err
	}
	r.notifs.Sendf(ctx, notifications.LoadComplete, "loaded %d duplicate groups", r.proc.Stats.DuplicateGroups)
	return nil
}

func (r *runner) loadState(context.Context) error {
	return r.proc.LoadState(r.statePath())
}

func (r *runner) merge(ctx context.Context) error {
	if err := r.gate(); err != nil {
		return err
	}
	if err := r.proc.Merge(ctx); err != nil {
		return err
	}
	if err := r.save(); err != nil {
		return err
	}
	r.notifs.Sendf(ctx, notifications.MergeComplete, "merged %d annotations", r.proc.Stats.Annotations)
	return nil
}

func (r *runner) evaluate(ctx context.Context) error {
	if err := r.gate(); err != nil {
		return err
	}
	if err := r.proc.Evaluate(ctx); err != nil {
		return err
	}
	if err := r.save(); err != nil {
		return err
	}
	if err := r.proc.WriteReview(r.reviewPath()); err != nil {
		return err
	}
	log.Printf("review file written to %s", r.reviewPath())
	r.notifs.Sendf(ctx, notifications.EvaluateComplete, "%d keepable, %d deletable, review at %s",
		r.proc.Stats.Keepable, r.proc.Stats.Deletable, r.reviewPath())
	return nil
}

// gate stops the pipeline between phases while anomalies are standing,
// unless the operator says go or said so up front with -yes.
func (r *runner) gate() error {
	if !r.proc.HasAnomalies() {
		return nil
	}
	log.Printf("%d anomalies on record, see %s", len(r.proc.Anomalies), r.errorsPath())
	if !r.confirm("continue despite anomalies?") {
		return errors.New("aborted by operator")
	}
	return nil
}

func (r *runner) confirm(prompt string) bool {
	if r.yes {
		return true
	}
	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
	sc := bufio.NewScanner(os.Stdin)
	if !sc.Scan() {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(sc.Text())) {
	case "y", "yes":
		return true
	}
	return false
}

func (r *runner) save() error {
	if err := r.proc.SaveState(r.statePath()); err != nil {
		return err
	}
	return r.proc.SaveAnomalies(r.errorsPath())
}

func (r *runner) report(ctx context.Context) {
	stats := r.proc.Stats

	t := table.NewStringWriter()
	fmt.Fprintf(t, "duplicate groups\t%d\n", stats.DuplicateGroups)
	fmt.Fprintf(t, "duplicate files\t%d\n", stats.DuplicateFiles)
	fmt.Fprintf(t, "resolved media\t%d\n", stats.ResolvedMedia)
	fmt.Fprintf(t, "annotations\t%d\n", stats.Annotations)
	fmt.Fprintf(t, "keepable\t%d\n", stats.Keepable)
	fmt.Fprintf(t, "deletable\t%d\n", stats.Deletable)
	for _, row := range strings.Split(strings.TrimRight(t.String(), "\n"), "\n") {
		log.Print(row)
	}

	if r.proc.HasAnomalies() {
		log.Printf("!! %d anomalies on record, see %s before acting on the review file", len(r.proc.Anomalies), r.errorsPath())
		r.notifs.Sendf(ctx, notifications.Errors, "run finished with %d anomalies", len(r.proc.Anomalies))
	}
}
