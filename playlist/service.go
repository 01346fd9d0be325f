package playlist

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"ytpipeline/config"
	"ytpipeline/warehouse"
	"ytpipeline/window"
	"ytpipeline/youtube"
)

const (
	shortsTopN = 20
	vodsTopN   = 10
	recentTopN = 10

	// Recent-hot ranks the analytics window D-9 through D-2.
	recentFromOffset = 9
	recentToOffset   = 2
)

// ReconcileError reports a failure scoped to a single playlist. Other
// playlists keep reconciling when one fails.
type ReconcileError struct {
	Playlist string
	Err      error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("playlist %s: reconcile: %v", e.Playlist, e.Err)
}

func (e *ReconcileError) Unwrap() error { return e.Err }

// Result records the outcome of reconciling one playlist.
type Result struct {
	Name    string
	Plan    Plan
	Added   int
	Removed int
	Err     error
}

// Reconciler syncs the three curated playlists with the latest rankings.
// The zero value is not usable; all fields except Now and DryRun are
// required.
type Reconciler struct {
	Store     warehouse.RankingStore
	Analytics youtube.AnalyticsAPI
	API       youtube.PlaylistAPI

	ChannelID string
	Playlists config.PlaylistConfig

	// BatchSize caps mutations applied between cooldown sleeps.
	BatchSize int
	Cooldown  time.Duration

	// DryRun computes and logs plans without mutating anything.
	DryRun bool

	Now func() time.Time
}

type target struct {
	name       string
	playlistID string
	desired    func(ctx context.Context) ([]string, error)
}

// Run reconciles all configured playlists. A failure on one playlist is
// recorded and the remaining playlists still run; the returned error joins
// the per-playlist failures, nil when every playlist succeeded.
func (r *Reconciler) Run(ctx context.Context) ([]Result, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	targets := []target{
		{
			name:       "shorts_top",
			playlistID: r.Playlists.ShortsTop,
			desired: func(ctx context.Context) ([]string, error) {
				return r.Store.TopShorts(ctx, r.ChannelID, shortsTopN)
			},
		},
		{
			name:       "vods_top",
			playlistID: r.Playlists.VODsTop,
			desired: func(ctx context.Context) ([]string, error) {
				return r.Store.TopVODs(ctx, r.ChannelID, vodsTopN)
			},
		},
		{
			name:       "recent_hot",
			playlistID: r.Playlists.RecentHot,
			desired: func(ctx context.Context) ([]string, error) {
				rng := window.OffsetRange(recentFromOffset, recentToOffset, now)
				top, err := r.Analytics.QueryTopVideos(ctx, r.ChannelID, rng.Start, rng.End, "views", recentTopN)
				if err != nil {
					return nil, err
				}
				ids := make([]string, len(top))
				for i, tv := range top {
					ids[i] = tv.VideoID
				}
				return ids, nil
			},
		},
	}

	var results []Result
	var errs []error
	for _, t := range targets {
		if t.playlistID == "" {
			log.Printf("playlist: %s: no playlist ID configured, skipping", t.name)
			continue
		}
		res := r.reconcileOne(ctx, t)
		results = append(results, res)
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
		// A cancelled context fails every remaining playlist the same way,
		// so stop instead of piling on identical errors.
		if ctx.Err() != nil {
			break
		}
	}
	return results, errors.Join(errs...)
}

func (r *Reconciler) reconcileOne(ctx context.Context, t target) Result {
	res := Result{Name: t.name}

	desired, err := t.desired(ctx)
	if err != nil {
		res.Err = &ReconcileError{Playlist: t.name, Err: fmt.Errorf("compute desired members: %w", err)}
		return res
	}
	live, err := r.API.ListPlaylistItems(ctx, t.playlistID)
	if err != nil {
		res.Err = &ReconcileError{Playlist: t.name, Err: fmt.Errorf("list live members: %w", err)}
		return res
	}

	res.Plan = BuildPlan(t.name, t.playlistID, desired, live)
	log.Printf("playlist: plan %s", res.Plan)
	if res.Plan.Empty() {
		return res
	}
	if r.DryRun {
		for _, rm := range res.Plan.Removals {
			log.Printf("playlist: %s: dry-run remove %s (item %s)", t.name, rm.VideoID, rm.ItemID)
		}
		for _, add := range res.Plan.Additions {
			log.Printf("playlist: %s: dry-run add %s at %d", t.name, add.VideoID, add.Position)
		}
		return res
	}

	added, removed, err := r.apply(ctx, res.Plan)
	res.Added, res.Removed = added, removed
	if err != nil {
		res.Err = &ReconcileError{Playlist: t.name, Err: err}
	}
	return res
}

// apply executes removals first, then additions in ascending position so
// each insert lands at its final index. Mutations run in batches with a
// cooldown sleep in between to stay clear of write quotas.
func (r *Reconciler) apply(ctx context.Context, plan Plan) (added, removed int, err error) {
	batch := 0
	pace := func() error {
		batch++
		if r.BatchSize <= 0 || batch%r.BatchSize != 0 || r.Cooldown <= 0 {
			return nil
		}
		select {
		case <-time.After(r.Cooldown):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for _, rm := range plan.Removals {
		if err := r.API.DeletePlaylistItem(ctx, rm.ItemID); err != nil {
			return added, removed, fmt.Errorf("remove %s: %w", rm.VideoID, err)
		}
		removed++
		if err := pace(); err != nil {
			return added, removed, err
		}
	}
	for _, add := range plan.Additions {
		if err := r.API.InsertPlaylistItem(ctx, plan.PlaylistID, add.VideoID, add.Position); err != nil {
			return added, removed, fmt.Errorf("add %s at %d: %w", add.VideoID, add.Position, err)
		}
		added++
		if err := pace(); err != nil {
			return added, removed, err
		}
	}
	log.Printf("playlist: %s: applied %d removals, %d additions", plan.Name, removed, added)
	return added, removed, nil
}
