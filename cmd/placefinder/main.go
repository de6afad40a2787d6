// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/poiesic/placefinder"
	"github.com/poiesic/placefinder/classify"
	"github.com/poiesic/placefinder/core"
	"github.com/poiesic/placefinder/search"
	"github.com/poiesic/placefinder/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := loadEnvFile(os.Getenv("PLACEFINDER_ENV_FILE")); err != nil {
		log.Fatal(err)
	}
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "placefinder",
		Usage: "Campus place search and enrichment",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"PLACEFINDER_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				EnvVars: []string{"PLACEFINDER_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				EnvVars: []string{"PLACEFINDER_DB"},
			},
			&cli.StringFlag{
				Name:    "places-key",
				Usage:   "Geo-search provider API key",
				EnvVars: []string{"GOOGLE_PLACES_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "places-url",
				Usage:   "Geo-search provider base URL",
				EnvVars: []string{"PLACEFINDER_PLACES_URL"},
			},
			&cli.StringFlag{
				Name:    "classifier-host",
				Usage:   "Classifier service host URL",
				EnvVars: []string{"PLACEFINDER_CLASSIFIER_HOST"},
			},
			&cli.StringFlag{
				Name:    "classifier-model",
				Usage:   "Classifier model name",
				EnvVars: []string{"PLACEFINDER_CLASSIFIER_MODEL"},
			},
			&cli.StringFlag{
				Name:    "classifier-token",
				Usage:   "Classifier service API token",
				EnvVars: []string{"PLACEFINDER_CLASSIFIER_TOKEN"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Search the catalog and the provider, printing every phase",
				ArgsUsage: "[query words]",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "lat", Usage: "Latitude of the search center"},
					&cli.Float64Flag{Name: "lng", Usage: "Longitude of the search center"},
					&cli.Float64Flag{Name: "radius", Usage: "Search radius in meters (unset means any distance)"},
					&cli.StringFlag{Name: "category", Usage: "Restrict results to a category"},
					&cli.StringFlag{Name: "context", Usage: "Campus id stored on created records"},
					&cli.BoolFlag{Name: "wait", Usage: "Wait for classification of created records", Value: true},
				},
			},
			{
				Name:   "seed",
				Usage:  "Add locally authored places from a YAML file",
				Action: seedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "YAML file of places",
						Required: true,
					},
					&cli.BoolFlag{Name: "classify", Usage: "Classify seeded places without a category"},
				},
			},
			{
				Name:   "classify",
				Usage:  "Classify records still pending and wait for the queue to drain",
				Action: classifyCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum records to enqueue (0 means all)"},
				},
			},
			{
				Name:      "requeue",
				Usage:     "Retry failed classification jobs",
				ArgsUsage: "<record id>...",
				Action:    requeueCommand,
			},
			{
				Name:   "status",
				Usage:  "Print catalog and classification counts",
				Action: statusCommand,
			},
		},
	}
}

// openEngine builds the engine from the config file, environment and flags.
func openEngine(c *cli.Context) (*placefinder.Engine, error) {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	cfg.applyFlags(c)

	if err := cfg.aiConfig().Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	opts := append(cfg.engineOptions(), placefinder.WithLogger(slog.Default()))
	e, err := placefinder.NewEngine(cfg.DB, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	slog.Debug("engine ready", "db", cfg.DB, "places_key", e.Places().HasKey())
	return e, nil
}

func searchCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	req := search.Request{
		Query:     strings.Join(c.Args().Slice(), " "),
		Category:  c.String("category"),
		ContextID: c.String("context"),
	}
	if c.IsSet("lat") != c.IsSet("lng") {
		return fmt.Errorf("lat and lng must be given together")
	}
	if c.IsSet("lat") {
		req.Center = &core.Coordinates{Lat: c.Float64("lat"), Lng: c.Float64("lng")}
	}
	if c.IsSet("radius") {
		radius := c.Float64("radius")
		req.RadiusMeters = &radius
	}

	e, err := openEngine(c)
	if err != nil {
		return err
	}
	defer e.Close()

	coord, err := e.NewCoordinator()
	if err != nil {
		return err
	}
	updates, err := coord.Search(ctx, req)
	if err != nil {
		return fmt.Errorf("invalid search: %w", err)
	}

	w := c.App.Writer
	for u := range updates {
		if u.Phase == search.PhaseLocal && u.Err != nil {
			return fmt.Errorf("search failed: %w", u.Err)
		}
		fmt.Fprintf(w, "== %s: %d results\n", u.Phase, len(u.Results))
		if u.Err != nil {
			fmt.Fprintf(w, "   %s search failed: %v\n", u.Phase, u.Err)
		}
		printResults(w, u.Results)
	}

	if c.Bool("wait") {
		if err := e.Queue().Wait(ctx); err != nil {
			return fmt.Errorf("waiting for classification: %w", err)
		}
	}
	return nil
}

func printResults(w io.Writer, results []search.Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range results {
		id := "-"
		if r.Record != nil {
			id = strconv.FormatUint(uint64(r.Record.Id), 10)
		}
		distance := "-"
		if r.HasDistance {
			distance = fmt.Sprintf("%.1f mi", r.DistanceMiles)
		}
		mark := ""
		if r.Provisional {
			mark = "provisional"
		}
		fmt.Fprintf(tw, "   %s\t%d\t%s\t%s\t%s\n", id, r.Score, distance, r.Name(), mark)
	}
	tw.Flush()
}

func seedCommand(c *cli.Context) error {
	ctx := c.Context

	records, err := readSeedFile(c.String("file"))
	if err != nil {
		return err
	}

	e, err := openEngine(c)
	if err != nil {
		return err
	}
	defer e.Close()

	stored, err := addBatched(ctx, e.Catalog(), recordsFromSlice(records), seedBatchSize)
	fmt.Fprintf(c.App.Writer, "Seeded %d of %d places\n", len(stored), len(records))
	if err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}

	if !c.Bool("classify") {
		return nil
	}
	var ids []core.ID
	for _, r := range stored {
		if r.Category == "" {
			ids = append(ids, r.Id)
		}
	}
	return drain(c, e.Queue(), func() (int, error) {
		return e.Queue().EnqueueBatch(ctx, ids)
	})
}

func classifyCommand(c *cli.Context) error {
	ctx := c.Context
	limit := c.Int("limit")
	if limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}

	e, err := openEngine(c)
	if err != nil {
		return err
	}
	defer e.Close()

	requeued, failed, err := e.Queue().Recover(ctx)
	if err != nil {
		return fmt.Errorf("recovering jobs: %w", err)
	}
	if requeued > 0 || failed > 0 {
		fmt.Fprintf(c.App.Writer, "Recovered %d pending jobs, failed %d interrupted jobs\n", requeued, failed)
	}

	return drain(c, e.Queue(), func() (int, error) {
		return e.Queue().EnqueuePending(ctx, limit)
	})
}

func requeueCommand(c *cli.Context) error {
	ids, err := parseIDs(c.Args().Slice())
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("at least one record id is required")
	}

	e, err := openEngine(c)
	if err != nil {
		return err
	}
	defer e.Close()

	return drain(c, e.Queue(), func() (int, error) {
		return e.Queue().Requeue(c.Context, ids...)
	})
}

// drain enqueues with fn, runs the queue until it is empty and reports progress.
func drain(c *cli.Context, queue *classify.Queue, fn func() (int, error)) error {
	w := c.App.Writer
	n, err := fn()
	if n == 0 && err != nil {
		return err
	}
	if err != nil {
		slog.Warn("some records were not enqueued", "err", err)
	}
	fmt.Fprintf(w, "Enqueued %d records for classification\n", n)
	total := queue.Status().QueueLength
	if total == 0 {
		return nil
	}

	progress := newProgressTracker(w, total, total/20)
	progress.Start()
	unsubscribe := queue.Subscribe(func(s classify.Status) {
		slog.Debug("classification progress", "queued", s.QueueLength, "processing", s.Processing)
		progress.Update(total - s.QueueLength)
	})
	defer unsubscribe()

	queue.Start()
	if err := queue.Wait(c.Context); err != nil {
		return fmt.Errorf("classification interrupted: %w", err)
	}
	progress.Finish()
	fmt.Fprintln(w, "Classification queue drained")
	return nil
}

func statusCommand(c *cli.Context) error {
	ctx := c.Context

	e, err := openEngine(c)
	if err != nil {
		return err
	}
	defer e.Close()

	records, err := e.Catalog().FindRecords(ctx, storage.RecordQuery{})
	if err != nil {
		return err
	}
	jobs, err := e.Jobs().ListJobs(ctx)
	if err != nil {
		return err
	}

	byStatus := map[core.RecordStatus]int{}
	bySource := map[core.Source]int{}
	for _, r := range records {
		byStatus[r.Status]++
		bySource[r.Source]++
	}
	byJob := map[core.ClassificationStatus]int{}
	for _, j := range jobs {
		byJob[j.Status]++
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Records: %d\n", len(records))
	for _, s := range []core.RecordStatus{core.RecordStatusPending, core.RecordStatusApproved, core.RecordStatusRejected} {
		fmt.Fprintf(w, "  %-10s %d\n", s, byStatus[s])
	}
	for _, s := range []core.Source{core.SourceLocal, core.SourceExternal} {
		fmt.Fprintf(w, "  %-10s %d\n", s, bySource[s])
	}
	fmt.Fprintf(w, "Classification jobs: %d\n", len(jobs))
	for _, s := range []core.ClassificationStatus{core.ClassificationPending, core.ClassificationProcessing, core.ClassificationCompleted, core.ClassificationFailed} {
		fmt.Fprintf(w, "  %-10s %d\n", s, byJob[s])
	}
	return nil
}

func parseIDs(args []string) ([]core.ID, error) {
	ids := make([]core.ID, 0, len(args))
	for _, arg := range args {
		v, err := strconv.ParseUint(strings.TrimSpace(arg), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid record id %q: %w", arg, err)
		}
		ids = append(ids, core.ID(v))
	}
	return ids, nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
