package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"viralshorts/manager-go/internal/utils"
)

const (
	PlatformDailymotion = "dailymotion"

	DailymotionBaseURL = "https://api.dailymotion.com"
	dailymotionMaxTags = 20
)

// Dailymotion uploads with a password-grant token scoped to manage_videos.
type Dailymotion struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	Channel      string
	HTTPClient   *http.Client

	mu     sync.Mutex
	client *http.Client
}

func NewDailymotion(clientID, clientSecret, username, password string) *Dailymotion {
	return &Dailymotion{
		BaseURL:      DailymotionBaseURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Username:     username,
		Password:     password,
		Channel:      "videogames",
		HTTPClient:   &http.Client{Timeout: 10 * time.Minute},
	}
}

func (d *Dailymotion) Platform() string { return PlatformDailymotion }

func (d *Dailymotion) Configured() bool {
	return d != nil && d.ClientID != "" && d.ClientSecret != "" && d.Username != "" && d.Password != ""
}

func (d *Dailymotion) authorized(ctx context.Context) (*http.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client != nil {
		return d.client, nil
	}
	if !d.Configured() {
		return nil, errors.New("dailymotion: missing api key, secret, username or password")
	}
	cfg := oauth2.Config{
		ClientID:     d.ClientID,
		ClientSecret: d.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  strings.TrimRight(d.BaseURL, "/") + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{"manage_videos"},
	}
	if d.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, d.HTTPClient)
	}
	token, err := cfg.PasswordCredentialsToken(ctx, d.Username, d.Password)
	if err != nil {
		return nil, fmt.Errorf("dailymotion: authenticate: %w", err)
	}
	utils.Debug("dailymotion authenticated", "user", d.Username)
	// The client outlives the request context; token refreshes use a fresh one.
	base := context.Background()
	if d.HTTPClient != nil {
		base = context.WithValue(base, oauth2.HTTPClient, d.HTTPClient)
	}
	d.client = cfg.Client(base, token)
	return d.client, nil
}

func (d *Dailymotion) Upload(ctx context.Context, video Video) (Result, error) {
	if !utils.FileExists(video.Path) {
		return Result{}, fmt.Errorf("dailymotion: video not found: %s", video.Path)
	}
	client, err := d.authorized(ctx)
	if err != nil {
		return Result{}, err
	}
	base := strings.TrimRight(d.BaseURL, "/")

	var target struct {
		UploadURL string `json:"upload_url"`
	}
	if err := d.doJSON(ctx, client, http.MethodGet, base+"/file/upload", nil, "", &target); err != nil {
		return Result{}, fmt.Errorf("dailymotion: get upload url: %w", err)
	}
	if target.UploadURL == "" {
		return Result{}, errors.New("dailymotion: empty upload url")
	}

	fileURL, err := d.sendFile(ctx, client, target.UploadURL, video.Path)
	if err != nil {
		return Result{}, err
	}

	tags := video.Tags
	if len(tags) > dailymotionMaxTags {
		tags = tags[:dailymotionMaxTags]
	}
	tagValue := strings.Join(tags, ",")
	if tagValue == "" {
		tagValue = "viral,shorts"
	}
	form := url.Values{
		"url":                 {fileURL},
		"title":               {truncateRunes(video.Title, 255)},
		"description":         {truncateRunes(video.Description, 3000)},
		"tags":                {tagValue},
		"channel":             {d.Channel},
		"published":           {"true"},
		"is_created_for_kids": {"false"},
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := d.doJSON(ctx, client, http.MethodPost, base+"/me/videos", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &created); err != nil {
		return Result{}, fmt.Errorf("dailymotion: create video: %w", err)
	}
	if created.ID == "" {
		return Result{}, errors.New("dailymotion: response carried no video id")
	}
	utils.Info("dailymotion upload complete", "video_id", created.ID, "title", video.Title)
	return Result{
		Platform: PlatformDailymotion,
		VideoID:  created.ID,
		URL:      "https://www.dailymotion.com/video/" + created.ID,
	}, nil
}

// Limits returns the account's upload limits as reported by /me?fields=limits.
func (d *Dailymotion) Limits(ctx context.Context) (map[string]any, error) {
	client, err := d.authorized(ctx)
	if err != nil {
		return nil, err
	}
	var out struct {
		Limits map[string]any `json:"limits"`
	}
	if err := d.doJSON(ctx, client, http.MethodGet, strings.TrimRight(d.BaseURL, "/")+"/me?fields=limits", nil, "", &out); err != nil {
		return nil, fmt.Errorf("dailymotion: limits: %w", err)
	}
	return out.Limits, nil
}

// sendFile streams the video as multipart field "file" and returns the hosted file url.
func (d *Dailymotion) sendFile(ctx context.Context, client *http.Client, uploadURL, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
		header.Set("Content-Type", "video/mp4")
		part, err := writer.CreatePart(header)
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = writer.Close()
		}
		pw.CloseWithError(err)
	}()

	var uploaded struct {
		URL string `json:"url"`
	}
	if err := d.doJSON(ctx, client, http.MethodPost, uploadURL, pr, writer.FormDataContentType(), &uploaded); err != nil {
		pr.CloseWithError(err)
		return "", fmt.Errorf("dailymotion: upload file: %w", err)
	}
	if uploaded.URL == "" {
		return "", errors.New("dailymotion: upload response carried no file url")
	}
	return uploaded.URL, nil
}

func (d *Dailymotion) doJSON(ctx context.Context, client *http.Client, method, endpoint string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
