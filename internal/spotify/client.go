package spotify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/time/rate"

	"github.com/julianstephens/songday/internal/logger"
	"github.com/julianstephens/songday/internal/models"
)

const (
	// mutationBatchSize is the provider-imposed page size for playlist writes.
	mutationBatchSize = 100

	pageLimit   = 50
	maxRetries  = 3
	historySize = 50
)

// Client implements Catalog against the Spotify Web API. All calls pass
// through a shared rate limiter; reads additionally get a bounded
// exponential-backoff retry.
type Client struct {
	api     *spotify.Client
	limiter *rate.Limiter
}

func NewClient(api *spotify.Client) *Client {
	return &Client{
		api:     api,
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
}

// retryRead runs op with backoff for polling-style reads. Writes never go
// through here.
func (c *Client) retryRead(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	return backoff.Retry(func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		return op()
	}, policy)
}

func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	var display string
	err := c.retryRead(ctx, func() error {
		user, err := c.api.CurrentUser(ctx)
		if err != nil {
			return err
		}
		display = user.DisplayName
		if display == "" {
			display = user.ID
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch current user: %w", err)
	}
	return display, nil
}

func (c *Client) RecentlyPlayed(ctx context.Context) ([]models.PlayEvent, error) {
	var items []spotify.RecentlyPlayedItem
	err := c.retryRead(ctx, func() error {
		var err error
		items, err = c.api.PlayerRecentlyPlayedOpt(ctx, &spotify.RecentlyPlayedOptions{Limit: historySize})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recently played: %w", err)
	}

	events := make([]models.PlayEvent, 0, len(items))
	for _, item := range items {
		if item.Track.ID == "" {
			continue // local file
		}
		events = append(events, models.PlayEvent{
			TrackID:       string(item.Track.ID),
			TrackName:     item.Track.Name,
			ArtistDisplay: joinArtists(item.Track.Artists),
			PlayedAt:      item.PlayedAt.UTC(),
			DurationMs:    int(item.Track.Duration),
			MediaType:     models.MediaTrack,
			Source:        models.SourceRecentlyPlayed,
		})
	}
	return events, nil
}

func (c *Client) CurrentPlayback(ctx context.Context) (*models.NowPlaying, error) {
	var playing *spotify.CurrentlyPlaying
	err := c.retryRead(ctx, func() error {
		var err error
		playing, err = c.api.PlayerCurrentlyPlaying(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch current playback: %w", err)
	}

	if playing == nil || !playing.Playing {
		return nil, nil
	}

	// Episodes come back without a track item on this endpoint.
	if playing.Item == nil {
		return &models.NowPlaying{IsPlaying: true, MediaType: models.MediaEpisode}, nil
	}

	return &models.NowPlaying{
		IsPlaying:     true,
		TrackID:       string(playing.Item.ID),
		TrackName:     playing.Item.Name,
		ArtistDisplay: joinArtists(playing.Item.Artists),
		DurationMs:    int(playing.Item.Duration),
		MediaType:     models.MediaTrack,
	}, nil
}

func (c *Client) FindPlaylistByName(ctx context.Context, name string) (*Playlist, error) {
	target := strings.ToLower(strings.TrimSpace(name))
	var partial *Playlist

	offset := 0
	for {
		var page *spotify.SimplePlaylistPage
		err := c.retryRead(ctx, func() error {
			var err error
			page, err = c.api.CurrentUsersPlaylists(ctx, spotify.Limit(pageLimit), spotify.Offset(offset))
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list playlists: %w", err)
		}

		for _, pl := range page.Playlists {
			plName := strings.ToLower(strings.TrimSpace(pl.Name))
			if plName == target {
				return &Playlist{ID: string(pl.ID), Name: pl.Name}, nil
			}
			if partial == nil && strings.Contains(plName, target) {
				partial = &Playlist{ID: string(pl.ID), Name: pl.Name}
			}
		}

		if len(page.Playlists) < pageLimit {
			break
		}
		offset += pageLimit
	}

	if partial != nil {
		return partial, nil
	}
	return nil, ErrPlaylistNotFound
}

func (c *Client) CreatePlaylist(ctx context.Context, name, description string, public bool) (*Playlist, error) {
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch current user: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	pl, err := c.api.CreatePlaylistForUser(ctx, user.ID, name, description, public, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist %q: %w", name, err)
	}
	return &Playlist{ID: string(pl.ID), Name: pl.Name}, nil
}

func (c *Client) PlaylistTracks(ctx context.Context, playlistID string) ([]models.PlaylistTrack, error) {
	var tracks []models.PlaylistTrack
	position := 0
	offset := 0

	for {
		var page *spotify.PlaylistItemPage
		err := c.retryRead(ctx, func() error {
			var err error
			page, err = c.api.GetPlaylistItems(ctx, spotify.ID(playlistID),
				spotify.Limit(mutationBatchSize), spotify.Offset(offset))
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list playlist tracks: %w", err)
		}

		for _, item := range page.Items {
			track := item.Track.Track
			if track == nil || track.ID == "" {
				position++
				continue // local file or unavailable
			}

			addedAt, err := parseTimestamp(item.AddedAt)
			if err != nil {
				logger.Warn("skipping playlist entry with unparseable added_at",
					"track", track.Name, "added_at", item.AddedAt)
				position++
				continue
			}

			tracks = append(tracks, models.PlaylistTrack{
				TrackID:       string(track.ID),
				TrackName:     track.Name,
				ArtistDisplay: joinArtists(track.Artists),
				AddedAt:       addedAt,
				DurationMs:    int(track.Duration),
				Position:      position,
			})
			position++
		}

		if len(page.Items) < mutationBatchSize {
			break
		}
		offset += mutationBatchSize
	}

	return tracks, nil
}

func (c *Client) LikedTracks(ctx context.Context, limit int) ([]models.PlayEvent, error) {
	var events []models.PlayEvent
	offset := 0

	for len(events) < limit {
		var page *spotify.SavedTrackPage
		err := c.retryRead(ctx, func() error {
			var err error
			page, err = c.api.CurrentUsersTracks(ctx, spotify.Limit(pageLimit), spotify.Offset(offset))
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list liked tracks: %w", err)
		}

		for _, saved := range page.Tracks {
			if saved.ID == "" {
				continue
			}
			likedAt, err := parseTimestamp(saved.AddedAt)
			if err != nil {
				logger.Warn("skipping liked track with unparseable added_at",
					"track", saved.Name, "added_at", saved.AddedAt)
				continue
			}
			events = append(events, models.PlayEvent{
				TrackID:       string(saved.ID),
				TrackName:     saved.Name,
				ArtistDisplay: joinArtists(saved.Artists),
				PlayedAt:      likedAt,
				DurationMs:    int(saved.Duration),
				MediaType:     models.MediaTrack,
			})
			if len(events) >= limit {
				break
			}
		}

		if len(page.Tracks) < pageLimit {
			break
		}
		offset += pageLimit
	}

	return events, nil
}

func (c *Client) AddToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	for _, batch := range batchIDs(trackIDs) {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := c.api.AddTracksToPlaylist(ctx, spotify.ID(playlistID), batch...); err != nil {
			return fmt.Errorf("failed to add tracks to playlist: %w", err)
		}
	}
	return nil
}

func (c *Client) RemoveFromPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	for _, batch := range batchIDs(trackIDs) {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := c.api.RemoveTracksFromPlaylist(ctx, spotify.ID(playlistID), batch...); err != nil {
			return fmt.Errorf("failed to remove tracks from playlist: %w", err)
		}
	}
	return nil
}

func batchIDs(trackIDs []string) [][]spotify.ID {
	var batches [][]spotify.ID
	for start := 0; start < len(trackIDs); start += mutationBatchSize {
		end := start + mutationBatchSize
		if end > len(trackIDs) {
			end = len(trackIDs)
		}
		batch := make([]spotify.ID, 0, end-start)
		for _, id := range trackIDs[start:end] {
			batch = append(batch, spotify.ID(id))
		}
		batches = append(batches, batch)
	}
	return batches
}

func joinArtists(artists []spotify.SimpleArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

func parseTimestamp(value string) (time.Time, error) {
	ts, err := time.Parse(spotify.TimestampLayout, value)
	if err != nil {
		ts, err = time.Parse(time.RFC3339, value)
	}
	return ts, err
}
