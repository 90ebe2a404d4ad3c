package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultConfigPath = "/etc/shorts-manager/config.ini"
	configPathEnv     = "SHORTS_CONFIG"
	dotEnvPathEnv     = "SHORTS_DOTENV"
)

type Config struct {
	Hostname  string
	AppEnv    string
	DataDir   string
	OutputDir string
	CacheDir  string
	MusicDir  string
	SFXDir    string
	FontFile  string
	EdgeTTS   string
	BatchSize int

	DBURL      string
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	RabbitMQHost     string
	RabbitMQPort     int
	RabbitMQUser     string
	RabbitMQPassword string
	RabbitMQVHost    string

	GeminiAPIKey         string
	GeminiBaseURL        string
	GeminiDailyLimit     int
	GroqAPIKey           string
	GroqDailyLimit       int
	OpenRouterAPIKey     string
	OpenRouterDailyLimit int
	OpenRouterReferer    string
	OpenRouterTitle      string
	HuggingFaceAPIKey    string

	PexelsAPIKey string

	YouTubeClientID     string
	YouTubeClientSecret string
	YouTubeRefreshToken string
	YouTubePrivacy      string

	DailymotionAPIKey    string
	DailymotionAPISecret string
	DailymotionUsername  string
	DailymotionPassword  string
	DailymotionChannel   string

	SlackBotToken string
	SlackChannel  string

	StatusListen string
}

// Load reads the INI file named by SHORTS_CONFIG (or the system default), after
// loading an optional .env file. Secrets set in the environment win over the INI.
func Load() (Config, error) {
	dotEnv := os.Getenv(dotEnvPathEnv)
	if dotEnv == "" {
		dotEnv = ".env"
	}
	if err := godotenv.Load(dotEnv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", dotEnv, err)
	}

	configPath := os.Getenv(configPathEnv)
	explicit := configPath != ""
	if !explicit {
		configPath = defaultConfigPath
	}
	ini, err := readINI(configPath)
	if err != nil {
		// Without an explicit path the pipeline can run from the environment alone.
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load config %s: %w", configPath, err)
		}
		ini = iniData{sections: map[string]map[string]string{}}
	}
	return fromINI(ini)
}

func fromINI(ini iniData) (Config, error) {
	cfg := Config{}
	cfg.Hostname = ini.get("app", "hostname")
	if cfg.Hostname == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.Hostname = host
		}
	}
	cfg.AppEnv = ini.getDefault("app", "env", "production")
	cfg.DataDir = ini.getDefault("app", "data_dir", filepath.Join("data", "persistent"))
	cfg.OutputDir = ini.getDefault("app", "output_dir", "output")
	cfg.CacheDir = ini.getDefault("app", "cache_dir", filepath.Join("data", "cache", "broll"))
	cfg.MusicDir = ini.getDefault("app", "music_dir", "music")
	cfg.SFXDir = ini.getDefault("app", "sfx_dir", "sfx")
	cfg.FontFile = ini.get("app", "font_file")
	cfg.EdgeTTS = ini.getDefault("tts", "edge_tts", "edge-tts")
	cfg.BatchSize = firstNonEmptyIntDefault(3, os.Getenv("BATCH_SIZE"), ini.get("app", "batch_size"))

	cfg.DBURL = firstNonEmpty(os.Getenv("DATABASE_URL"), ini.get("db", "url"), ini.get("db", "database_url"))
	cfg.DBHost = ini.getDefault("db", "host", "127.0.0.1")
	cfg.DBPort = ini.getIntDefault("db", "port", 5432)
	cfg.DBName = ini.getDefault("db", "name", "shorts")
	cfg.DBUser = ini.getDefault("db", "user", "shorts")
	cfg.DBPassword = ini.get("db", "password")
	cfg.DBSSLMode = ini.getDefault("db", "sslmode", "prefer")

	cfg.RabbitMQHost = ini.getDefault("rabbitmq", "host", "127.0.0.1")
	cfg.RabbitMQPort = ini.getIntDefault("rabbitmq", "port", 5672)
	cfg.RabbitMQUser = ini.getDefault("rabbitmq", "user", "guest")
	cfg.RabbitMQPassword = ini.getDefault("rabbitmq", "password", "guest")
	cfg.RabbitMQVHost = ini.getDefault("rabbitmq", "vhost", "/")

	// Provider secrets: environment first, then config.ini.
	cfg.GeminiAPIKey = firstNonEmpty(os.Getenv("GEMINI_API_KEY"), ini.get("gemini", "api_key"))
	cfg.GeminiBaseURL = ini.get("gemini", "base_url")
	cfg.GeminiDailyLimit = firstNonEmptyIntDefault(900000, os.Getenv("GEMINI_DAILY_LIMIT"), ini.get("gemini", "daily_limit"))
	cfg.GroqAPIKey = firstNonEmpty(os.Getenv("GROQ_API_KEY"), ini.get("groq", "api_key"))
	cfg.GroqDailyLimit = firstNonEmptyIntDefault(90000, os.Getenv("GROQ_DAILY_LIMIT"), ini.get("groq", "daily_limit"))
	cfg.OpenRouterAPIKey = firstNonEmpty(os.Getenv("OPENROUTER_API_KEY"), ini.get("openrouter", "api_key"))
	cfg.OpenRouterDailyLimit = firstNonEmptyIntDefault(200000, os.Getenv("OPENROUTER_DAILY_LIMIT"), ini.get("openrouter", "daily_limit"))
	cfg.OpenRouterReferer = ini.getDefault("openrouter", "referer", "https://github.com/viralshorts")
	cfg.OpenRouterTitle = ini.getDefault("openrouter", "title", "Viral Shorts")
	cfg.HuggingFaceAPIKey = firstNonEmpty(os.Getenv("HUGGINGFACE_API_KEY"), ini.get("huggingface", "api_key"))

	cfg.PexelsAPIKey = firstNonEmpty(os.Getenv("PEXELS_API_KEY"), ini.get("pexels", "api_key"))

	cfg.YouTubeClientID = firstNonEmpty(os.Getenv("YOUTUBE_CLIENT_ID"), ini.get("youtube", "client_id"))
	cfg.YouTubeClientSecret = firstNonEmpty(os.Getenv("YOUTUBE_CLIENT_SECRET"), ini.get("youtube", "client_secret"))
	cfg.YouTubeRefreshToken = firstNonEmpty(os.Getenv("YOUTUBE_REFRESH_TOKEN"), ini.get("youtube", "refresh_token"))
	cfg.YouTubePrivacy = ini.getDefault("youtube", "privacy", "public")

	cfg.DailymotionAPIKey = firstNonEmpty(os.Getenv("DAILYMOTION_API_KEY"), ini.get("dailymotion", "api_key"))
	cfg.DailymotionAPISecret = firstNonEmpty(os.Getenv("DAILYMOTION_API_SECRET"), ini.get("dailymotion", "api_secret"))
	cfg.DailymotionUsername = firstNonEmpty(os.Getenv("DAILYMOTION_USERNAME"), ini.get("dailymotion", "username"))
	cfg.DailymotionPassword = firstNonEmpty(os.Getenv("DAILYMOTION_PASSWORD"), ini.get("dailymotion", "password"))
	cfg.DailymotionChannel = ini.getDefault("dailymotion", "channel", "videogames")

	cfg.SlackBotToken = firstNonEmpty(os.Getenv("SLACK_BOT_TOKEN"), ini.get("slack", "bot_token"))
	cfg.SlackChannel = firstNonEmpty(os.Getenv("SLACK_CHANNEL"), ini.get("slack", "channel"))

	cfg.StatusListen = ini.getDefault("status", "listen", "127.0.0.1:8085")

	if cfg.BatchSize <= 0 {
		return cfg, errors.New("app.batch_size must be positive")
	}
	return cfg, nil
}

func (c Config) DBConnString() string {
	if c.DBURL != "" {
		return c.DBURL
	}
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBUser,
		c.DBPassword,
		c.DBSSLMode,
	)
}

func (c Config) RabbitMQURL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.RabbitMQUser, c.RabbitMQPassword),
		Host:   net.JoinHostPort(c.RabbitMQHost, strconv.Itoa(c.RabbitMQPort)),
		Path:   "/" + strings.TrimPrefix(c.RabbitMQVHost, "/"),
	}
	return u.String()
}

type iniData struct {
	sections map[string]map[string]string
}

func readINI(path string) (iniData, error) {
	file, err := os.Open(path)
	if err != nil {
		return iniData{}, err
	}
	defer file.Close()

	data := iniData{sections: map[string]map[string]string{}}
	section := "default"
	data.sections[section] = map[string]string{}

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			if section == "" {
				return iniData{}, fmt.Errorf("invalid section header at line %d", lineNo)
			}
			if _, ok := data.sections[section]; !ok {
				data.sections[section] = map[string]string{}
			}
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return iniData{}, fmt.Errorf("invalid line %d: %q", lineNo, line)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return iniData{}, fmt.Errorf("empty key at line %d", lineNo)
		}
		data.sections[section][key] = trimQuotes(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return iniData{}, err
	}
	return data, nil
}

func trimQuotes(value string) string {
	if len(value) < 2 {
		return value
	}
	if value[0] == '"' && value[len(value)-1] == '"' {
		return value[1 : len(value)-1]
	}
	if value[0] == '\'' && value[len(value)-1] == '\'' {
		return value[1 : len(value)-1]
	}
	return value
}

func (ini iniData) get(section, key string) string {
	if len(ini.sections) == 0 {
		return ""
	}
	section = strings.ToLower(section)
	key = strings.ToLower(key)
	if section == "" {
		section = "default"
	}
	if values, ok := ini.sections[section]; ok {
		return values[key]
	}
	return ""
}

func (ini iniData) getDefault(section, key, fallback string) string {
	value := ini.get(section, key)
	if value == "" {
		return fallback
	}
	return value
}

func (ini iniData) getIntDefault(section, key string, fallback int) int {
	value := ini.get(section, key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func firstNonEmptyInt(values ...string) (int, bool) {
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		return parsed, true
	}
	return 0, false
}

func firstNonEmptyIntDefault(fallback int, values ...string) int {
	if parsed, ok := firstNonEmptyInt(values...); ok {
		return parsed
	}
	return fallback
}
