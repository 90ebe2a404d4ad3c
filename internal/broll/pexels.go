// Package broll finds and downloads portrait stock footage from Pexels for each phrase.
package broll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"viralshorts/manager-go/internal/utils"
)

const (
	DefaultBaseURL     = "https://api.pexels.com"
	defaultConcurrency = 3
	minHDHeight        = 720
	searchPerPage      = 10
)

var ErrNoFootage = errors.New("no footage found")

type VideoFile struct {
	Quality string `json:"quality"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Link    string `json:"link"`
}

type Video struct {
	ID         int64       `json:"id"`
	Duration   int         `json:"duration"`
	VideoFiles []VideoFile `json:"video_files"`
}

type searchResponse struct {
	Videos []Video `json:"videos"`
}

type Client struct {
	apiKey      string
	baseURL     string
	dir         string
	concurrency int
	search      *http.Client
	download    *http.Client
	intn        func(n int) int
}

// New returns a client that stores clips under dir (assets/broll).
func New(apiKey, baseURL, dir string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		dir:         dir,
		concurrency: defaultConcurrency,
		search:      &http.Client{Timeout: 15 * time.Second},
		download:    &http.Client{Timeout: 60 * time.Second},
		intn:        rand.Intn,
	}
}

func (c *Client) Enabled() bool { return c != nil && c.apiKey != "" }

func (c *Client) Search(ctx context.Context, keyword string) ([]Video, error) {
	q := url.Values{}
	q.Set("query", keyword)
	q.Set("orientation", "portrait")
	q.Set("per_page", fmt.Sprint(searchPerPage))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)
	resp, err := c.search.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("pexels search status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode pexels search: %w", err)
	}
	return decoded.Videos, nil
}

// BestFile picks the first HD rendition at least 720px tall, else the first file.
func BestFile(files []VideoFile) (VideoFile, bool) {
	for _, f := range files {
		if f.Quality == "hd" && f.Height >= minHDHeight {
			return f, true
		}
	}
	if len(files) > 0 {
		return files[0], true
	}
	return VideoFile{}, false
}

func SafeKeyword(keyword string) string {
	var b strings.Builder
	for _, r := range keyword {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	runes := []rune(b.String())
	if len(runes) > 30 {
		runes = runes[:30]
	}
	return string(runes)
}

func (c *Client) cached(safe string) string {
	matches, err := filepath.Glob(filepath.Join(c.dir, "v7_"+safe+"_*.mp4"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0]
}

// Fetch returns a local clip for keyword, reusing a cached download when one exists.
func (c *Client) Fetch(ctx context.Context, keyword string, index int) (string, error) {
	safe := SafeKeyword(keyword)
	if path := c.cached(safe); path != "" {
		utils.Debug("broll cache hit", "keyword", keyword, "path", path)
		return path, nil
	}
	videos, err := c.Search(ctx, keyword)
	if err != nil {
		return "", err
	}
	if len(videos) == 0 {
		return "", ErrNoFootage
	}
	video := videos[c.intn(len(videos))]
	file, ok := BestFile(video.VideoFiles)
	if !ok || file.Link == "" {
		return "", ErrNoFootage
	}
	out := filepath.Join(c.dir, fmt.Sprintf("v7_%s_%d_%d.mp4", safe, index, 1000+c.intn(9000)))
	if err := c.downloadTo(ctx, file.Link, out); err != nil {
		return "", err
	}
	utils.Info("broll downloaded", "keyword", keyword, "path", out)
	return out, nil
}

func (c *Client) downloadTo(ctx context.Context, link, out string) error {
	if err := utils.EnsureDir(filepath.Dir(out)); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return err
	}
	resp, err := c.download.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("broll download status=%d", resp.StatusCode)
	}
	tmp := out + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, out)
}

// FetchAll downloads one clip per keyword concurrently. A keyword without footage
// yields "" at its index; only a cancelled context is an error.
func (c *Client) FetchAll(ctx context.Context, keywords []string) ([]string, error) {
	paths := make([]string, len(keywords))
	if !c.Enabled() {
		utils.Warn("pexels api key missing; rendering without broll")
		return paths, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, keyword := range keywords {
		i, keyword := i, keyword
		g.Go(func() error {
			path, err := c.Fetch(gctx, keyword, i)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				utils.Warn("broll fetch failed", "keyword", keyword, "err", err)
				return nil
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}
