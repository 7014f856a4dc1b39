// Package yandex implements catalog.Provider for the Yandex Music API.
package yandex

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"trackbot/internal/catalog"
	"trackbot/internal/provider"
)

// signSalt is mixed into the download path signature the storage hosts check.
const signSalt = "XGRlBW9FXlekgbPrRHuSiA"

// codecRank orders codecs from most to least preferred.
var codecRank = map[string]int{
	"flac":     0,
	"flac-mp4": 1,
	"aac":      2,
	"he-aac":   3,
	"mp3":      4,
}

var codecTypes = map[string]string{
	"flac":     "audio/flac",
	"flac-mp4": "audio/mp4",
	"aac":      "audio/aac",
	"he-aac":   "audio/aac",
	"mp3":      "audio/mpeg",
}

// Client is a Yandex Music client that implements catalog.Provider.
type Client struct {
	httpClient    *http.Client
	apiURL        string
	webURL        string
	token         string
	storageScheme string
}

func New(apiURL, webURL, token string) *Client {
	if webURL == "" {
		webURL = "https://music.yandex.ru"
	}
	return &Client{
		httpClient:    provider.NewHTTPClient(),
		apiURL:        apiURL,
		webURL:        webURL,
		token:         token,
		storageScheme: "https",
	}
}

func (c *Client) Name() string { return "yandex" }

func (c *Client) header() http.Header {
	return http.Header{"Authorization": []string{"OAuth " + c.token}}
}

// Search runs a track search; page is zero based.
func (c *Client) Search(ctx context.Context, query string, page int) ([]catalog.Track, error) {
	params := url.Values{}
	params.Set("text", query)
	params.Set("type", "track")
	params.Set("page", strconv.Itoa(page))

	var resp searchResponse
	if err := provider.GetJSON(ctx, c.httpClient, "yandex", c.apiURL+"/search?"+params.Encode(), c.header(), &resp); err != nil {
		return nil, fmt.Errorf("yandex search: %v: %w", err, catalog.ErrUnavailable)
	}

	var tracks []catalog.Track
	for _, item := range resp.Result.Tracks.Results {
		if !item.Available {
			// Region locked or removed; selection would fail anyway.
			continue
		}
		tracks = append(tracks, c.toTrack(item))
	}
	return tracks, nil
}

func (c *Client) toTrack(item trackItem) catalog.Track {
	var artists []string
	for _, a := range item.Artists {
		if a.Name != "" {
			artists = append(artists, a.Name)
		}
	}

	ref := catalog.Reference{
		ID:       item.ID,
		Provider: "yandex",
		URL:      c.webURL + "/track/" + item.ID,
	}
	var album string
	if len(item.Albums) > 0 {
		album = item.Albums[0].Title
		ref.URL = fmt.Sprintf("%s/album/%d/track/%s", c.webURL, item.Albums[0].ID, item.ID)
	}
	if item.CoverURI != "" {
		ref.CoverURL = "https://" + strings.Replace(item.CoverURI, "%%", "400x400", 1)
	}

	return catalog.Track{
		Reference: ref,
		Metadata: catalog.Metadata{
			Title:      item.Title,
			Artists:    artists,
			Album:      album,
			DurationMs: item.DurationMs,
		},
	}
}

// Resolve negotiates the best available codec and opens the signed storage URL.
func (c *Client) Resolve(ctx context.Context, ref catalog.Reference, notify catalog.Notify) (*catalog.Stream, error) {
	var info downloadInfoResponse
	if err := provider.GetJSON(ctx, c.httpClient, "yandex", c.apiURL+"/tracks/"+url.PathEscape(ref.ID)+"/download-info", c.header(), &info); err != nil {
		return nil, err
	}

	best, ok := pickBest(info.Result)
	if !ok {
		return nil, fmt.Errorf("yandex track %s has no downloadable codec: %w", ref.ID, catalog.ErrNotFound)
	}

	var loc storageLocation
	if err := provider.GetJSON(ctx, c.httpClient, "yandex", best.DownloadInfoURL+"&format=json", c.header(), &loc); err != nil {
		return nil, err
	}

	return provider.OpenStream(ctx, "yandex", c.storageURL(loc, best.Codec), nil, codecTypes[best.Codec])
}

func (c *Client) storageURL(loc storageLocation, codec string) string {
	sum := md5.Sum([]byte(signSalt + strings.TrimPrefix(loc.Path, "/") + loc.S))
	return fmt.Sprintf("%s://%s/get-%s/%s/%s%s", c.storageScheme, loc.Host, codec, hex.EncodeToString(sum[:]), loc.TS, loc.Path)
}

// pickBest prefers lossless codecs, then higher bitrate. Previews are skipped.
func pickBest(infos []downloadInfo) (downloadInfo, bool) {
	var candidates []downloadInfo
	for _, i := range infos {
		if _, known := codecRank[i.Codec]; known && !i.Preview && i.DownloadInfoURL != "" {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return downloadInfo{}, false
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		ra, rb := codecRank[candidates[a].Codec], codecRank[candidates[b].Codec]
		if ra != rb {
			return ra < rb
		}
		return candidates[a].BitrateInKbps > candidates[b].BitrateInKbps
	})
	return candidates[0], true
}

// Yandex Music API response types

type searchResponse struct {
	Result struct {
		Tracks struct {
			Results []trackItem `json:"results"`
		} `json:"tracks"`
	} `json:"result"`
}

type trackItem struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	DurationMs int64       `json:"durationMs"`
	Available  bool        `json:"available"`
	CoverURI   string      `json:"coverUri"`
	Artists    []artist    `json:"artists"`
	Albums     []albumInfo `json:"albums"`
}

type artist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type albumInfo struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type downloadInfoResponse struct {
	Result []downloadInfo `json:"result"`
}

type downloadInfo struct {
	Codec           string `json:"codec"`
	BitrateInKbps   int    `json:"bitrateInKbps"`
	Preview         bool   `json:"preview"`
	DownloadInfoURL string `json:"downloadInfoUrl"`
}

type storageLocation struct {
	Host string `json:"host"`
	Path string `json:"path"`
	TS   string `json:"ts"`
	S    string `json:"s"`
}
