package upload

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"viralshorts/manager-go/internal/utils"
)

const (
	PlatformYouTube = "youtube"

	// YouTube category "People & Blogs".
	youtubeCategory   = "22"
	youtubeTokenURL   = "https://oauth2.googleapis.com/token"
	youtubeChunkSize  = 1024 * 1024
	youtubeMaxRetries = 3
)

// YouTube uploads through the Data API v3 using a stored refresh token.
type YouTube struct {
	OAuth        oauth2.Config
	RefreshToken string
	// Endpoint overrides the API base URL; empty means production.
	Endpoint string
	// HTTPClient is used for token refreshes.
	HTTPClient *http.Client

	sleep func(time.Duration)
}

func NewYouTube(clientID, clientSecret, refreshToken string) *YouTube {
	return &YouTube{
		OAuth: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: youtubeTokenURL},
			Scopes:       []string{youtube.YoutubeUploadScope},
		},
		RefreshToken: refreshToken,
		sleep:        time.Sleep,
	}
}

func (y *YouTube) Platform() string { return PlatformYouTube }

func (y *YouTube) Configured() bool {
	return y != nil && y.OAuth.ClientID != "" && y.OAuth.ClientSecret != "" && y.RefreshToken != ""
}

func (y *YouTube) service(ctx context.Context) (*youtube.Service, error) {
	if y.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, y.HTTPClient)
	}
	source := y.OAuth.TokenSource(ctx, &oauth2.Token{RefreshToken: y.RefreshToken})
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, source))}
	if y.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(y.Endpoint))
	}
	return youtube.NewService(ctx, opts...)
}

func (y *YouTube) Upload(ctx context.Context, video Video) (Result, error) {
	if !y.Configured() {
		return Result{}, errors.New("youtube: missing client id, secret or refresh token")
	}
	service, err := y.service(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("youtube: create service: %w", err)
	}
	privacy := video.Privacy
	if privacy == "" {
		privacy = "public"
	}
	body := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       truncateRunes(video.Title, 100),
			Description: truncateRunes(video.Description, 5000),
			Tags:        video.Tags,
			CategoryId:  youtubeCategory,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           privacy,
			SelfDeclaredMadeForKids: false,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}

	sleep := y.sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	for attempt := 0; ; attempt++ {
		id, err := y.insert(ctx, service, body, video.Path)
		if err == nil {
			utils.Info("youtube upload complete", "video_id", id, "title", body.Snippet.Title)
			return Result{Platform: PlatformYouTube, VideoID: id, URL: "https://youtube.com/shorts/" + id}, nil
		}
		var apiErr *googleapi.Error
		if !errors.As(err, &apiErr) || apiErr.Code < 500 || attempt >= youtubeMaxRetries {
			return Result{}, fmt.Errorf("youtube: upload: %w", err)
		}
		wait := time.Duration(1<<(attempt+1)) * time.Second
		utils.Warn("youtube server error, retrying", "code", apiErr.Code, "wait", wait)
		sleep(wait)
	}
}

func (y *YouTube) insert(ctx context.Context, service *youtube.Service, body *youtube.Video, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	call := service.Videos.Insert([]string{"snippet", "status"}, body).
		Media(file, googleapi.ChunkSize(youtubeChunkSize), googleapi.ContentType("video/mp4")).
		Context(ctx)
	resp, err := call.Do()
	if err != nil {
		return "", err
	}
	return resp.Id, nil
}
