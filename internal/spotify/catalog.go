package spotify

import (
	"context"
	"errors"

	"github.com/julianstephens/songday/internal/models"
)

// ErrPlaylistNotFound is returned when no playlist matches the configured
// name and creation was not possible.
var ErrPlaylistNotFound = errors.New("playlist not found")

// Playlist identifies a playlist in the catalog.
type Playlist struct {
	ID   string
	Name string
}

// Catalog is the semantic contract the engine needs from the music service.
// Read methods are retried with backoff on transient failures; the two
// mutation methods are attempted exactly once so a timeout can never turn
// into a duplicate insertion.
type Catalog interface {
	CurrentUser(ctx context.Context) (string, error)

	// RecentlyPlayed returns the listening history page, newest first.
	RecentlyPlayed(ctx context.Context) ([]models.PlayEvent, error)

	// CurrentPlayback returns the playback state, or nil when nothing is
	// playing at all.
	CurrentPlayback(ctx context.Context) (*models.NowPlaying, error)

	// FindPlaylistByName prefers an exact case-insensitive match and falls
	// back to the first substring match. Returns ErrPlaylistNotFound when
	// neither exists.
	FindPlaylistByName(ctx context.Context, name string) (*Playlist, error)

	CreatePlaylist(ctx context.Context, name, description string, public bool) (*Playlist, error)

	// PlaylistTracks returns every entry of the playlist in position order.
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.PlaylistTrack, error)

	// LikedTracks returns up to limit saved tracks, newest first. PlayedAt
	// on the returned events carries the liked-at time.
	LikedTracks(ctx context.Context, limit int) ([]models.PlayEvent, error)

	AddToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error
	RemoveFromPlaylist(ctx context.Context, playlistID string, trackIDs []string) error
}
