// Package youtube wraps the YouTube Data API v3 and YouTube Analytics API v2
// behind a retrying client.
//
// Every call is classified as transient or fatal (see Transient) and retried
// under the configured policy. List endpoints paginate with continuation
// tokens; each page participates in the retry policy individually, so a
// transient failure on page N retries only page N.
package youtube

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	ytdata "google.golang.org/api/youtube/v3"
	ytanalytics "google.golang.org/api/youtubeanalytics/v2"

	"ytpipeline/retry"
)

// dayFormat is the civil date format the Analytics API speaks.
const dayFormat = "2006-01-02"

// DailyMetricColumns are the channel-daily report columns, in upstream
// naming and order.
var DailyMetricColumns = []string{
	"views", "estimatedMinutesWatched", "averageViewDuration",
	"averageViewPercentage", "likes", "dislikes", "comments", "shares",
	"playlistStarts", "viewsPerPlaylistStart", "cardClicks",
	"cardTeaserClicks", "subscribersGained", "subscribersLost",
}

// RankingMetrics are the metrics a top-video ranking may sort by.
var RankingMetrics = []string{
	"views", "estimatedMinutesWatched", "likes", "comments", "shares",
}

// AnalyticsAPI is the analytics-reporting surface the ETL steps consume.
type AnalyticsAPI interface {
	QueryChannelDaily(ctx context.Context, channelID string, start, end time.Time) ([]DailyRow, error)
	QueryTopVideos(ctx context.Context, channelID string, start, end time.Time, metric string, topN int) ([]TopVideo, error)
}

// DataAPI is the metadata surface the ETL steps consume.
type DataAPI interface {
	ChannelInfo(ctx context.Context, channelID string) (ChannelInfo, error)
	VideoDetails(ctx context.Context, videoIDs []string) ([]VideoDetail, error)
}

// PlaylistAPI is the playlist membership surface, read and write. Uploads
// enumeration also goes through ListPlaylistItems, against the channel's
// uploads playlist.
type PlaylistAPI interface {
	ListPlaylistItems(ctx context.Context, playlistID string) ([]PlaylistItem, error)
	InsertPlaylistItem(ctx context.Context, playlistID, videoID string, position int64) error
	DeletePlaylistItem(ctx context.Context, itemID string) error
}

// Client implements AnalyticsAPI, DataAPI and PlaylistAPI against the real
// services.
type Client struct {
	data      *ytdata.Service
	analytics *ytanalytics.Service
	policy    retry.Policy
	pageSize  int64
}

var (
	_ AnalyticsAPI = (*Client)(nil)
	_ DataAPI      = (*Client)(nil)
	_ PlaylistAPI  = (*Client)(nil)
)

// Options configures a Client.
type Options struct {
	// Policy is the per-call retry policy.
	Policy retry.Policy
	// PageSize caps list pages; the API maximum is 50.
	PageSize int64
	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// NewClient builds a Client authenticated by the credential provider.
func NewClient(ctx context.Context, creds CredentialProvider, opts Options) (*Client, error) {
	if opts.PageSize < 1 || opts.PageSize > 50 {
		opts.PageSize = 50
	}
	if opts.Policy.MaxAttempts == 0 {
		opts.Policy = retry.DefaultPolicy()
	}

	hc := oauth2.NewClient(ctx, creds)
	if opts.Timeout > 0 {
		hc.Timeout = opts.Timeout
	}

	data, err := ytdata.NewService(ctx, option.WithHTTPClient(hc))
	if err != nil {
		return nil, fmt.Errorf("create data service: %w", err)
	}
	analytics, err := ytanalytics.NewService(ctx, option.WithHTTPClient(hc))
	if err != nil {
		return nil, fmt.Errorf("create analytics service: %w", err)
	}

	return &Client{data: data, analytics: analytics, policy: opts.Policy, pageSize: opts.PageSize}, nil
}

// call runs fn under the retry policy, classifying each failure.
func (c *Client) call(ctx context.Context, op string, fn func(context.Context) error) error {
	return retry.Do(ctx, c.policy, Transient, func(ctx context.Context) error {
		return wrap(op, fn(ctx))
	})
}

// ChannelInfo fetches the channel's metadata and uploads playlist ID.
func (c *Client) ChannelInfo(ctx context.Context, channelID string) (ChannelInfo, error) {
	var resp *ytdata.ChannelListResponse
	err := c.call(ctx, "channels.list", func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.data.Channels.List([]string{"snippet", "contentDetails"}).
			Id(channelID).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return ChannelInfo{}, err
	}
	if len(resp.Items) == 0 {
		return ChannelInfo{}, &APIError{Op: "channels.list", Err: fmt.Errorf("channel %s: %w", channelID, ErrNotFound)}
	}

	item := resp.Items[0]
	info := ChannelInfo{ID: item.Id}
	if item.Snippet != nil {
		info.Title = item.Snippet.Title
		info.PublishedAt = parseTimestamp(item.Snippet.PublishedAt)
	}
	if item.ContentDetails != nil && item.ContentDetails.RelatedPlaylists != nil {
		info.UploadsPlaylistID = item.ContentDetails.RelatedPlaylists.Uploads
	}
	return info, nil
}

// VideoDetails fetches raw video payloads, batched at the API's 50-ID limit.
func (c *Client) VideoDetails(ctx context.Context, videoIDs []string) ([]VideoDetail, error) {
	var out []VideoDetail
	for start := 0; start < len(videoIDs); start += 50 {
		end := start + 50
		if end > len(videoIDs) {
			end = len(videoIDs)
		}
		batch := videoIDs[start:end]

		var resp *ytdata.VideoListResponse
		err := c.call(ctx, "videos.list", func(ctx context.Context) error {
			var callErr error
			resp, callErr = c.data.Videos.List(
				[]string{"snippet", "contentDetails", "statistics", "status", "liveStreamingDetails"}).
				Id(batch...).MaxResults(int64(len(batch))).Context(ctx).Do()
			return callErr
		})
		if err != nil {
			return nil, err
		}
		for _, item := range resp.Items {
			out = append(out, videoDetailFromItem(item))
		}
	}
	return out, nil
}

func videoDetailFromItem(item *ytdata.Video) VideoDetail {
	d := VideoDetail{ID: item.Id}
	if item.Snippet != nil {
		d.ChannelID = item.Snippet.ChannelId
		d.Title = item.Snippet.Title
		d.PublishedAt = parseTimestamp(item.Snippet.PublishedAt)
		d.LiveBroadcastContent = item.Snippet.LiveBroadcastContent
	}
	if item.ContentDetails != nil {
		d.DurationSeconds = parseISODuration(item.ContentDetails.Duration)
	}
	if item.Status != nil {
		d.PrivacyStatus = item.Status.PrivacyStatus
	}
	if item.LiveStreamingDetails != nil {
		d.ActualStartTime = parseTimestamp(item.LiveStreamingDetails.ActualStartTime)
		d.ActualEndTime = parseTimestamp(item.LiveStreamingDetails.ActualEndTime)
	}
	if item.Statistics != nil {
		d.ViewCount = int64(item.Statistics.ViewCount)
		d.LikeCount = int64(item.Statistics.LikeCount)
		d.CommentCount = int64(item.Statistics.CommentCount)
	}
	return d
}

// ListPlaylistItems pages through the playlist and returns its items in
// playlist order.
func (c *Client) ListPlaylistItems(ctx context.Context, playlistID string) ([]PlaylistItem, error) {
	var out []PlaylistItem
	pageToken := ""
	for {
		var resp *ytdata.PlaylistItemListResponse
		err := c.call(ctx, "playlistItems.list", func(ctx context.Context) error {
			var callErr error
			resp, callErr = c.data.PlaylistItems.List([]string{"id", "snippet", "contentDetails"}).
				PlaylistId(playlistID).MaxResults(c.pageSize).PageToken(pageToken).
				Context(ctx).Do()
			return callErr
		})
		if err != nil {
			return nil, err
		}
		for _, item := range resp.Items {
			pi := PlaylistItem{ItemID: item.Id}
			if item.ContentDetails != nil {
				pi.VideoID = item.ContentDetails.VideoId
			}
			if item.Snippet != nil {
				pi.Position = item.Snippet.Position
			}
			if pi.VideoID != "" {
				out = append(out, pi)
			}
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			return out, nil
		}
	}
}

// InsertPlaylistItem inserts the video at the given 0-based position.
// A negative position appends.
func (c *Client) InsertPlaylistItem(ctx context.Context, playlistID, videoID string, position int64) error {
	snippet := &ytdata.PlaylistItemSnippet{
		PlaylistId: playlistID,
		ResourceId: &ytdata.ResourceId{Kind: "youtube#video", VideoId: videoID},
	}
	if position >= 0 {
		snippet.Position = position
		// Position 0 must still reach the wire.
		snippet.ForceSendFields = append(snippet.ForceSendFields, "Position")
	}
	return c.call(ctx, "playlistItems.insert", func(ctx context.Context) error {
		_, callErr := c.data.PlaylistItems.Insert([]string{"snippet"},
			&ytdata.PlaylistItem{Snippet: snippet}).Context(ctx).Do()
		return callErr
	})
}

// DeletePlaylistItem removes one playlist item by its item ID.
func (c *Client) DeletePlaylistItem(ctx context.Context, itemID string) error {
	return c.call(ctx, "playlistItems.delete", func(ctx context.Context) error {
		return c.data.PlaylistItems.Delete(itemID).Context(ctx).Do()
	})
}

// QueryChannelDaily fetches the channel x day report for the inclusive
// [start, end] range, one DailyRow per reported day.
func (c *Client) QueryChannelDaily(ctx context.Context, channelID string, start, end time.Time) ([]DailyRow, error) {
	var resp *ytanalytics.QueryResponse
	err := c.call(ctx, "reports.query", func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.analytics.Reports.Query().
			Ids("channel=="+channelID).
			StartDate(start.Format(dayFormat)).
			EndDate(end.Format(dayFormat)).
			Metrics(strings.Join(DailyMetricColumns, ",")).
			Dimensions("day").
			Sort("day").
			Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}

	headers := headerNames(resp)
	var out []DailyRow
	for _, row := range resp.Rows {
		dr := DailyRow{Metrics: make(map[string]float64)}
		for i, cell := range row {
			if i >= len(headers) {
				break
			}
			if headers[i] == "day" {
				dr.Day, _ = cell.(string)
				continue
			}
			if v, ok := numeric(cell); ok {
				dr.Metrics[headers[i]] = v
			}
		}
		if dr.Day != "" {
			out = append(out, dr)
		}
	}
	return out, nil
}

// QueryTopVideos fetches the per-video ranking for the window, sorted by the
// given metric descending. The metric must be one of RankingMetrics; an
// unknown metric fails before any network call.
func (c *Client) QueryTopVideos(ctx context.Context, channelID string, start, end time.Time, metric string, topN int) ([]TopVideo, error) {
	if !validRankingMetric(metric) {
		return nil, &APIError{Op: "reports.query", Err: fmt.Errorf("%w: unsupported ranking metric %q", ErrInvalidRequest, metric)}
	}

	var resp *ytanalytics.QueryResponse
	err := c.call(ctx, "reports.query", func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.analytics.Reports.Query().
			Ids("channel=="+channelID).
			StartDate(start.Format(dayFormat)).
			EndDate(end.Format(dayFormat)).
			Metrics(strings.Join(RankingMetrics, ",")).
			Dimensions("video").
			Sort("-"+metric).
			MaxResults(int64(topN)).
			Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}

	headers := headerNames(resp)
	var out []TopVideo
	for _, row := range resp.Rows {
		tv := TopVideo{Metrics: make(map[string]float64)}
		for i, cell := range row {
			if i >= len(headers) {
				break
			}
			if headers[i] == "video" {
				tv.VideoID, _ = cell.(string)
				continue
			}
			if v, ok := numeric(cell); ok {
				tv.Metrics[headers[i]] = v
			}
		}
		if tv.VideoID != "" {
			out = append(out, tv)
		}
	}
	if len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

func validRankingMetric(metric string) bool {
	for _, m := range RankingMetrics {
		if m == metric {
			return true
		}
	}
	return false
}

func headerNames(resp *ytanalytics.QueryResponse) []string {
	names := make([]string, len(resp.ColumnHeaders))
	for i, h := range resp.ColumnHeaders {
		names[i] = h.Name
	}
	return names
}

// numeric coerces an analytics cell to float64. Cells arrive as JSON
// numbers but string-typed cells show up in some report variants.
func numeric(cell interface{}) (float64, bool) {
	switch v := cell.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// parseTimestamp parses an RFC3339 timestamp, returning the zero time for
// empty or malformed input.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		log.Printf("youtube: unparseable timestamp %q", s)
		return time.Time{}
	}
	return t.UTC()
}

// parseISODuration parses an ISO 8601 duration like "PT1H2M3S" into whole
// seconds. Returns 0 for empty or malformed input.
func parseISODuration(s string) int {
	if s == "" || !strings.HasPrefix(s, "P") {
		return 0
	}
	var total, num int
	inTime := false
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int(r-'0')
		case r == 'T':
			inTime = true
			num = 0
		case r == 'D':
			total += num * 86400
			num = 0
		case r == 'H' && inTime:
			total += num * 3600
			num = 0
		case r == 'M' && inTime:
			total += num * 60
			num = 0
		case r == 'S' && inTime:
			total += num
			num = 0
		default:
			// Weeks/months/years never appear in video durations.
			num = 0
		}
	}
	return total
}
