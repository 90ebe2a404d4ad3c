package jobs

import (
	"context"
	"fmt"

	"viralshorts/manager-go/internal/broll"
	"viralshorts/manager-go/internal/config"
	"viralshorts/manager-go/internal/llm"
	"viralshorts/manager-go/internal/music"
	"viralshorts/manager-go/internal/quota"
	"viralshorts/manager-go/internal/render"
	"viralshorts/manager-go/internal/script"
	"viralshorts/manager-go/internal/slack"
	"viralshorts/manager-go/internal/state"
	"viralshorts/manager-go/internal/upload"
	"viralshorts/manager-go/internal/utils"
	"viralshorts/manager-go/internal/voice"
)

type Speaker interface {
	Synthesize(ctx context.Context, text string, sel voice.Selection, out string) (float64, error)
}

type ClipFetcher interface {
	FetchAll(ctx context.Context, keywords []string) ([]string, error)
}

type Compositor interface {
	Render(ctx context.Context, in render.Input) (render.Result, error)
}

// Services holds the long-lived collaborators of the pipeline stages.
type Services struct {
	Budget   *quota.Budget
	Pools    *quota.Pools
	Quality  *quota.QualityHistory
	Variety  *state.Variety
	Uploads  *state.Uploads
	LLM      llm.Completer
	Script   *script.Generator
	Voice    Speaker
	Broll    ClipFetcher
	Music    *music.Library
	Renderer Compositor
	Notifier *slack.Notifier

	YouTube     upload.Uploader
	Dailymotion upload.Uploader
}

// NewServices wires providers and state stores from configuration. Missing API keys
// disable the matching provider rather than failing.
func NewServices(cfg config.Config) (*Services, error) {
	if err := utils.EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	s := &Services{
		Budget:  NewBudget(cfg),
		Pools:   quota.NewPools(cfg.DataDir),
		Quality: quota.NewQualityHistory(cfg.DataDir),
		Variety: state.NewVariety(cfg.DataDir),
		Uploads: state.NewUploads(cfg.DataDir),
	}

	var providers []llm.Provider
	if cfg.GeminiAPIKey != "" {
		providers = append(providers, llm.NewGemini(cfg.GeminiAPIKey, cfg.GeminiBaseURL, nil))
	}
	if cfg.GroqAPIKey != "" {
		providers = append(providers, llm.NewGroq(cfg.GroqAPIKey, "", nil))
	}
	if cfg.OpenRouterAPIKey != "" {
		providers = append(providers, llm.NewOpenRouter(cfg.OpenRouterAPIKey, "", cfg.OpenRouterReferer, cfg.OpenRouterTitle, nil))
	}
	if cfg.HuggingFaceAPIKey != "" {
		providers = append(providers, llm.NewHuggingFace(cfg.HuggingFaceAPIKey, "", nil))
	}
	caller := llm.NewCaller(s.Budget, s.Pools, providers...)
	if !caller.HasProviders() {
		utils.Warn("no LLM provider configured; stages will use built-in fallbacks")
	}
	s.LLM = caller
	s.Script = script.NewGenerator(caller, s.Quality, s.Variety, cfg.DataDir)

	s.Voice = voice.NewSynthesizer(cfg.EdgeTTS)
	s.Broll = broll.New(cfg.PexelsAPIKey, "", cfg.CacheDir)

	lib, err := music.Load(cfg.MusicDir)
	if err != nil {
		return nil, err
	}
	s.Music = lib

	opts := render.DefaultOptions()
	opts.FontFile = cfg.FontFile
	s.Renderer = render.NewRenderer(opts)

	if yt := upload.NewYouTube(cfg.YouTubeClientID, cfg.YouTubeClientSecret, cfg.YouTubeRefreshToken); yt.Configured() {
		s.YouTube = yt
	}
	dm := upload.NewDailymotion(cfg.DailymotionAPIKey, cfg.DailymotionAPISecret, cfg.DailymotionUsername, cfg.DailymotionPassword)
	if dm.Configured() {
		if cfg.DailymotionChannel != "" {
			dm.Channel = cfg.DailymotionChannel
		}
		s.Dailymotion = dm
	}
	s.Notifier = slack.NewNotifier(cfg.SlackBotToken, cfg.SlackChannel)
	return s, nil
}

// NewBudget opens the provider token budget with the configured daily limits.
func NewBudget(cfg config.Config) *quota.Budget {
	limits := quota.DefaultBudgetLimits()
	limits.GroqDaily = cfg.GroqDailyLimit
	limits.GeminiDaily = cfg.GeminiDailyLimit
	limits.OpenRouterDaily = cfg.OpenRouterDailyLimit
	return quota.NewBudget(cfg.DataDir, limits)
}
