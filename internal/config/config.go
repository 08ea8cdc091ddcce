package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

type Config struct {
	BotToken   string
	TMDBAPIKey string
	ImgBBKey   string

	Port         string
	MongoURI     string
	FontDir      string
	DataDir      string
	PasteURL     string
	TelegramLink string
	AdLink       string
}

// Load reads the environment (after best-effort .env loading) and fails
// on missing required credentials so the process never runs half-wired.
func Load() (*Config, error) {
	_ = LoadDotEnv(".env")

	cfg := &Config{
		BotToken:     strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		TMDBAPIKey:   strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
		ImgBBKey:     strings.TrimSpace(os.Getenv("IMGBB_API_KEY")),
		Port:         strings.TrimSpace(os.Getenv("PORT")),
		MongoURI:     strings.TrimSpace(os.Getenv("MONGODB_URI")),
		FontDir:      strings.TrimSpace(os.Getenv("FONT_DIR")),
		DataDir:      strings.TrimSpace(os.Getenv("DATA_DIR")),
		PasteURL:     strings.TrimSpace(os.Getenv("PASTE_URL")),
		TelegramLink: strings.TrimSpace(os.Getenv("TELEGRAM_LINK")),
		AdLink:       strings.TrimSpace(os.Getenv("AD_LINK")),
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.FontDir == "" {
		cfg.FontDir = "fonts"
	}
	if cfg.AdLink == "" {
		cfg.AdLink = "https://www.google.com"
	}

	missing := []string{}
	if cfg.BotToken == "" {
		missing = append(missing, "BOT_TOKEN")
	}
	if cfg.TMDBAPIKey == "" {
		missing = append(missing, "TMDB_API_KEY")
	}
	if cfg.ImgBBKey == "" {
		missing = append(missing, "IMGBB_API_KEY")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

// LoadDotEnv reads KEY=VALUE lines into the environment without
// overriding variables that are already set.
func LoadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(k), "export "))
		v = strings.Trim(strings.TrimSpace(v), "\"'")
		if k == "" || os.Getenv(k) != "" {
			continue
		}
		_ = os.Setenv(k, v)
	}
	return scanner.Err()
}
