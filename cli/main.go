package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"ytpipeline/config"
	"ytpipeline/etl"
	"ytpipeline/notify"
	"ytpipeline/pipeline"
	"ytpipeline/playlist"
	"ytpipeline/retry"
	"ytpipeline/warehouse"
	"ytpipeline/window"
	"ytpipeline/youtube"
)

func main() {
	// No subcommand (or a leading flag) means run_all, which is what the
	// scheduler invokes.
	command := "run_all"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "run_all":
		cmdRunAll(args)
	case "ingest_channel_daily":
		cmdIngestChannelDaily(args)
	case "fetch_videos":
		cmdFetchVideos(args)
	case "top_videos":
		cmdTopVideos(args)
	case "update_playlists":
		cmdUpdatePlaylists(args)
	case "track_velocity":
		cmdTrackVelocity(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `ytpipeline - YouTube analytics warehouse pipeline

Usage:
  ytpipeline [run_all] [flags]              Run the full ordered step sequence
  ytpipeline ingest_channel_daily [flags]   Ingest daily channel metrics
  ytpipeline fetch_videos [flags]           Ingest video dimensions and stats
  ytpipeline top_videos [flags]             Ingest the ranked video window
  ytpipeline update_playlists [flags]       Reconcile the curated playlists
  ytpipeline track_velocity [flags]         Capture per-video counter deltas
  ytpipeline help                           Show this help message

Examples:
  ytpipeline                                          # Full run (scheduler entry point)
  ytpipeline run_all --dry-run                        # Full run, playlists planned only
  ytpipeline ingest_channel_daily --start 2024-01-01 --end 2024-01-31
  ytpipeline top_videos --limit 20 --metric views
  ytpipeline update_playlists --dry-run

Configuration comes from YTP_* environment variables and ytpipeline.json.
For help on a specific command: ytpipeline <command> -h
`)
}

// app holds the wired collaborators shared by every command.
type app struct {
	cfg   config.Config
	store *warehouse.Postgres
	yt    *youtube.Client
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	creds, err := youtube.FileTokenSource(ctx, cfg.ClientSecretFile, cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	yt, err := youtube.NewClient(ctx, creds, youtube.Options{
		Policy:   callPolicy(cfg),
		PageSize: cfg.PageSize,
		Timeout:  cfg.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}

	store, err := warehouse.NewPostgres(ctx, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("connect warehouse: %w", err)
	}
	return &app{cfg: cfg, store: store, yt: yt}, nil
}

func (a *app) Close() { a.store.Close() }

func callPolicy(cfg config.Config) retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = cfg.MaxAttempts
	p.InitialBackoff = cfg.InitialBackoff
	p.MaxBackoff = cfg.MaxBackoff
	p.Multiplier = cfg.BackoffMultiplier
	return p
}

func (a *app) channelDailyStep() *etl.ChannelDaily {
	step := &etl.ChannelDaily{
		Store:     a.store,
		Analytics: a.yt,
		ChannelID: a.cfg.ChannelID,
		Lag:       a.cfg.LagDays,
	}
	// Malformed dates are caught by config.Validate before this point.
	step.BackfillFloor, _ = window.ParseDay(a.cfg.StartDate)
	step.HardEnd, _ = window.ParseDay(a.cfg.EndDate)
	return step
}

func (a *app) reconciler(dryRun bool) *playlist.Reconciler {
	return &playlist.Reconciler{
		Store:     a.store,
		Analytics: a.yt,
		API:       a.yt,
		ChannelID: a.cfg.ChannelID,
		Playlists: a.cfg.Playlists,
		BatchSize: a.cfg.ReconcileBatchSize,
		Cooldown:  a.cfg.ReconcileCooldown,
		DryRun:    dryRun,
	}
}

func cmdRunAll(args []string) {
	fs := flag.NewFlagSet("run_all", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "Plan playlist changes without applying them")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytpipeline run_all [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ensure := &etl.EnsureChannel{Store: a.store, Data: a.yt, ChannelID: a.cfg.ChannelID}
	fetch := &etl.FetchVideos{Store: a.store, Data: a.yt, Playlists: a.yt, ChannelID: a.cfg.ChannelID}
	top := &etl.TopVideos{Store: a.store, Analytics: a.yt, ChannelID: a.cfg.ChannelID}
	reconciler := a.reconciler(*dryRun)

	runner := &pipeline.Runner{
		Policy: stepPolicy(a.cfg),
		Steps: []pipeline.Step{
			{Name: "ensure_channel", Run: ensure.Run},
			{Name: "ingest_channel_daily", Deps: []string{"ensure_channel"}, Run: a.channelDailyStep().Run},
			{Name: "fetch_videos", Deps: []string{"ensure_channel"}, Run: fetch.Run},
			{Name: "top_videos", Deps: []string{"fetch_videos"}, Run: top.Run},
			{Name: "update_playlists", Deps: []string{"fetch_videos"}, Run: func(ctx context.Context) error {
				_, err := reconciler.Run(ctx)
				return err
			}},
		},
	}

	summary := runner.Run(ctx)

	if _, _, err := summary.WriteArtifacts(a.cfg.LogDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not write run artifacts: %v\n", err)
	}
	notify.NotifyAll(ctx, summary.Digest(), notify.FromConfig(&a.cfg))

	fmt.Print(summary.Digest())
	if summary.Status != pipeline.StatusOK {
		os.Exit(1)
	}
}

// stepPolicy retries whole steps a fixed small number of times; the per-call
// policy inside the API client already absorbs most transient failures.
func stepPolicy(cfg config.Config) retry.Policy {
	p := callPolicy(cfg)
	p.MaxAttempts = 2
	return p
}

func cmdIngestChannelDaily(args []string) {
	fs := flag.NewFlagSet("ingest_channel_daily", flag.ExitOnError)
	channel := fs.String("channel", "", "Channel ID (default: configured channel)")
	start := fs.String("start", "", "Explicit window start (YYYY-MM-DD)")
	end := fs.String("end", "", "Explicit window end (YYYY-MM-DD)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytpipeline ingest_channel_daily [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	step := a.channelDailyStep()
	if *channel != "" {
		step.ChannelID = *channel
	}
	if *start != "" || *end != "" {
		rng, err := window.Explicit(*start, *end)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		step.Window = rng
	}

	if err := step.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func cmdFetchVideos(args []string) {
	fs := flag.NewFlagSet("fetch_videos", flag.ExitOnError)
	channel := fs.String("channel", "", "Channel ID (default: configured channel)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytpipeline fetch_videos [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	channelID := a.cfg.ChannelID
	if *channel != "" {
		channelID = *channel
	}

	ensure := &etl.EnsureChannel{Store: a.store, Data: a.yt, ChannelID: channelID}
	if err := ensure.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fetch := &etl.FetchVideos{Store: a.store, Data: a.yt, Playlists: a.yt, ChannelID: channelID}
	if err := fetch.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func cmdTopVideos(args []string) {
	fs := flag.NewFlagSet("top_videos", flag.ExitOnError)
	channel := fs.String("channel", "", "Channel ID (default: configured channel)")
	start := fs.String("start", "", "Explicit window start (YYYY-MM-DD)")
	end := fs.String("end", "", "Explicit window end (YYYY-MM-DD)")
	limit := fs.Int("limit", 10, "Number of ranked videos to ingest")
	metric := fs.String("metric", "views", "Ranking metric")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytpipeline top_videos [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	step := &etl.TopVideos{
		Store:     a.store,
		Analytics: a.yt,
		ChannelID: a.cfg.ChannelID,
		Metric:    *metric,
		TopN:      *limit,
	}
	if *channel != "" {
		step.ChannelID = *channel
	}
	if *start != "" || *end != "" {
		rng, err := window.Explicit(*start, *end)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		step.Window = rng
	}

	if err := step.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func cmdTrackVelocity(args []string) {
	fs := flag.NewFlagSet("track_velocity", flag.ExitOnError)
	channel := fs.String("channel", "", "Channel ID (default: configured channel)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytpipeline track_velocity [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	step := &etl.TrackVelocity{Store: a.store, Data: a.yt, Playlists: a.yt, ChannelID: a.cfg.ChannelID}
	if *channel != "" {
		step.ChannelID = *channel
	}
	if err := step.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func cmdUpdatePlaylists(args []string) {
	fs := flag.NewFlagSet("update_playlists", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "Plan changes without applying them")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytpipeline update_playlists [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	results, err := a.reconciler(*dryRun).Run(ctx)
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", res.Name, res.Err)
			continue
		}
		fmt.Printf("  %s: removed %d, added %d\n", res.Name, res.Removed, res.Added)
	}
	if err != nil {
		os.Exit(1)
	}
}
