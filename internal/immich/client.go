// Package immich provides the client for the remote Immich photo service.
package immich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kimhsiao/photosync/internal/apperr"
)

// Asset is one photo or video in a remote album.
type Asset struct {
	ID               string `json:"id"`
	OriginalFileName string `json:"originalFileName"`
	Type             string `json:"type"`
}

// Album is remote album metadata.
type Album struct {
	ID         string  `json:"id"`
	AlbumName  string  `json:"albumName"`
	AssetCount int     `json:"assetCount"`
	Assets     []Asset `json:"assets,omitempty"`
}

// Client talks to an Immich server. Every request carries the API key and
// passes an outbound rate gate so a large album sync cannot hammer the
// server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client for the given server URL and API key. The URL
// is normalized to end with /api, matching how Immich exposes its REST
// surface.
func NewClient(serverURL, apiKey string) *Client {
	base := strings.TrimRight(serverURL, "/")
	if !strings.HasSuffix(base, "/api") {
		base += "/api"
	}
	return &Client{
		baseURL: base,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		// 10 req/s with small bursts is friendly to self-hosted servers
		limiter: rate.NewLimiter(rate.Limit(10), 5),
	}
}

// ValidateConnection checks server reachability and API key validity.
// It returns ok plus a human-readable message either way.
func (c *Client) ValidateConnection(ctx context.Context) (bool, string) {
	resp, err := c.get(ctx, "/server-info/ping")
	if err != nil {
		return false, fmt.Sprintf("Failed to connect: could not reach the server. Error: %v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return false, "Failed to connect: the provided API key is invalid."
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Sprintf("Failed to connect: HTTP error %d", resp.StatusCode)
	}

	var pong struct {
		Res string `json:"res"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pong); err != nil {
		return false, "Failed to connect: unexpected response format from server."
	}
	if pong.Res != "pong" {
		return false, "Failed to connect: unexpected response from server."
	}
	return true, "Successfully connected to Immich."
}

// ListAlbums retrieves all albums from the server.
func (c *Client) ListAlbums(ctx context.Context) ([]Album, error) {
	resp, err := c.get(ctx, "/albums")
	if err != nil {
		return nil, apperr.Remote("list albums: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Remote("list albums: HTTP %d", resp.StatusCode)
	}

	var albums []Album
	if err := json.NewDecoder(resp.Body).Decode(&albums); err != nil {
		return nil, apperr.Remote("list albums: decode: %v", err)
	}
	return albums, nil
}

// ListAlbumAssets retrieves the assets of one album.
func (c *Client) ListAlbumAssets(ctx context.Context, albumID string) ([]Asset, error) {
	resp, err := c.get(ctx, "/albums/"+albumID)
	if err != nil {
		return nil, apperr.Remote("list assets of %s: %v", albumID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Remote("list assets of %s: HTTP %d", albumID, resp.StatusCode)
	}

	var album Album
	if err := json.NewDecoder(resp.Body).Decode(&album); err != nil {
		return nil, apperr.Remote("list assets of %s: decode: %v", albumID, err)
	}
	return album.Assets, nil
}

// FetchAsset downloads the original bytes of one asset.
func (c *Client) FetchAsset(ctx context.Context, assetID string) ([]byte, error) {
	resp, err := c.get(ctx, "/assets/"+assetID+"/original")
	if err != nil {
		return nil, apperr.Remote("fetch asset %s: %v", assetID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Remote("fetch asset %s: HTTP %d", assetID, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Remote("fetch asset %s: read: %v", assetID, err)
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}
