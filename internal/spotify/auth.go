package spotify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/julianstephens/songday/internal/logger"
)

const tokenFileName = "token.json"

var defaultScopes = []string{
	spotifyauth.ScopeUserReadRecentlyPlayed, // listening history
	spotifyauth.ScopeUserReadPlaybackState,  // currently-playing
	spotifyauth.ScopePlaylistReadPrivate,    // read playlist contents
	spotifyauth.ScopePlaylistModifyPrivate,  // add tracks (private playlist)
	spotifyauth.ScopePlaylistModifyPublic,   // add tracks (public playlist)
	spotifyauth.ScopeUserLibraryRead,        // liked songs
}

// Authenticate returns a catalog client for the profile whose state lives in
// stateDir. A cached token is refreshed transparently and written back on
// refresh; without one, the interactive authorization-code flow runs once
// and caches the result, so headless cron invocations only need the file.
func Authenticate(ctx context.Context, stateDir string) (*Client, error) {
	// Credentials may come from the environment or a .env file alongside
	// the binary.
	_ = godotenv.Load()

	clientID := os.Getenv("SPOTIFY_ID")
	clientSecret := os.Getenv("SPOTIFY_SECRET")
	redirectURI := os.Getenv("SPOTIFY_REDIRECT_URI")
	if redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("SPOTIFY_ID and SPOTIFY_SECRET must be set (env or .env file)")
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       defaultScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}

	tokenPath := filepath.Join(stateDir, tokenFileName)
	token, err := loadToken(tokenPath)
	if err != nil {
		return nil, err
	}
	if token == nil {
		token, err = interactiveFlow(ctx, clientID, clientSecret, redirectURI)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokenPath, token); err != nil {
			return nil, err
		}
	}

	source := &persistingTokenSource{
		path:   tokenPath,
		inner:  conf.TokenSource(ctx, token),
		cached: token,
	}
	httpClient := oauth2.NewClient(ctx, source)
	return NewClient(spotify.New(httpClient)), nil
}

// interactiveFlow runs the browser-based authorization-code exchange with a
// one-shot localhost callback server.
func interactiveFlow(ctx context.Context, clientID, clientSecret, redirectURI string) (*oauth2.Token, error) {
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(redirectURI),
		spotifyauth.WithScopes(defaultScopes...),
		spotifyauth.WithClientID(clientID),
		spotifyauth.WithClientSecret(clientSecret),
	)

	state, err := randomState()
	if err != nil {
		return nil, err
	}

	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid SPOTIFY_REDIRECT_URI: %w", err)
	}

	tokens := make(chan *oauth2.Token, 1)
	errs := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(parsed.Path, func(w http.ResponseWriter, r *http.Request) {
		tok, err := auth.Token(r.Context(), state, r)
		if err != nil {
			http.Error(w, "Couldn't get token", http.StatusForbidden)
			errs <- err
			return
		}
		if st := r.FormValue("state"); st != state {
			http.NotFound(w, r)
			errs <- fmt.Errorf("oauth state mismatch")
			return
		}
		fmt.Fprint(w, "Login completed! You can close this window.")
		tokens <- tok
	})

	srv := &http.Server{Addr: parsed.Host, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()
	defer srv.Close()

	fmt.Println("Log in to Spotify by visiting this page in your browser:")
	fmt.Println(auth.AuthURL(state))

	select {
	case tok := <-tokens:
		return tok, nil
	case err := <-errs:
		return nil, fmt.Errorf("authorization failed: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// persistingTokenSource writes the token file back whenever a refresh
// produces a new access token, so long-lived cron setups keep working after
// the original token expires.
type persistingTokenSource struct {
	path   string
	inner  oauth2.TokenSource
	cached *oauth2.Token
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.inner.Token()
	if err != nil {
		return nil, err
	}
	if s.cached == nil || tok.AccessToken != s.cached.AccessToken {
		s.cached = tok
		if err := saveToken(s.path, tok); err != nil {
			logger.Warn("failed to persist refreshed token", "error", err)
		}
	}
	return tok, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token cache: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token cache %s: %w", path, err)
	}
	return &token, nil
}

func saveToken(path string, token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize token: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token cache: %w", err)
	}
	return nil
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
