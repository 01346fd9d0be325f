// Package playlist reconciles curated playlists against freshly computed
// rankings.
//
// Reconciliation is a two-phase diff-and-apply: BuildPlan computes the
// minimal set of mutations that transforms the live membership into the
// desired ordered membership, and Service applies it in rate-limited
// batches. Identical inputs always produce identical plans.
package playlist

import (
	"fmt"

	"ytpipeline/youtube"
)

// Addition inserts one video at an explicit 0-based position.
type Addition struct {
	VideoID  string
	Position int64
}

// Removal deletes one playlist item by its item ID.
type Removal struct {
	ItemID  string
	VideoID string
}

// Plan is the computed diff for one playlist.
type Plan struct {
	// Name labels the playlist in logs and summaries.
	Name string
	// PlaylistID is the upstream playlist.
	PlaylistID string
	// Desired is the target ordered membership.
	Desired []string
	// Live is the membership as last observed.
	Live []youtube.PlaylistItem
	// Removals are applied first, then Additions in ascending position.
	Removals  []Removal
	Additions []Addition
}

// Empty reports whether the playlist already matches the desired state.
func (p Plan) Empty() bool {
	return len(p.Removals) == 0 && len(p.Additions) == 0
}

func (p Plan) String() string {
	return fmt.Sprintf("%s: keep %d, remove %d, add %d",
		p.Name, len(p.Live)-len(p.Removals), len(p.Removals), len(p.Additions))
}

// BuildPlan diffs desired against live membership. Items on the longest
// common subsequence of video IDs stay in place; everything else in live is
// removed and everything else in desired is inserted at its target position.
// The upstream API has no in-place move, so a reordered item costs one
// remove plus one add.
func BuildPlan(name, playlistID string, desired []string, live []youtube.PlaylistItem) Plan {
	liveIDs := make([]string, len(live))
	for i, it := range live {
		liveIDs[i] = it.VideoID
	}
	keepDesired, keepLive := commonSubsequence(desired, liveIDs)

	plan := Plan{Name: name, PlaylistID: playlistID, Desired: desired, Live: live}

	for i, it := range live {
		if !keepLive[i] {
			plan.Removals = append(plan.Removals, Removal{ItemID: it.ItemID, VideoID: it.VideoID})
		}
	}
	for i, id := range desired {
		if !keepDesired[i] {
			plan.Additions = append(plan.Additions, Addition{VideoID: id, Position: int64(i)})
		}
	}
	return plan
}

// commonSubsequence marks the elements of a and b belonging to one longest
// common subsequence. The backtrack prefers keeping earlier elements of a,
// which makes the chosen subsequence (and thus the plan) deterministic.
func commonSubsequence(a, b []string) (keepA, keepB []bool) {
	n, m := len(a), len(b)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	keepA = make([]bool, n)
	keepB = make([]bool, m)
	for i, j := 0, 0; i < n && j < m; {
		switch {
		case a[i] == b[j]:
			keepA[i] = true
			keepB[j] = true
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			i++
		default:
			j++
		}
	}
	return keepA, keepB
}
