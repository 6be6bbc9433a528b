package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings carries all runtime configuration. Everything comes from the
// environment so the binaries can run unchanged in containers and cron.
type Settings struct {
	Port          string
	DataDir       string
	DatabaseURL   string
	TenantsFile   string
	FollowDetails bool
	DetailCap     int
	Summarize     bool
	StaleWindow   time.Duration
	RefreshSecret string
	FetchTimeout  time.Duration
	OllamaHost    string
	OllamaModel   string
	CORSOrigins   []string
	JWTSecret     string
}

// Load reads Settings from the environment, applying defaults.
func Load() Settings {
	s := Settings{
		Port:          getenv("PORT", "8080"),
		DataDir:       getenv("DATA_DIR", "data"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		TenantsFile:   getenv("TENANTS_FILE", "tenants.yaml"),
		FollowDetails: getbool("FOLLOW_DETAILS", true),
		DetailCap:     getint("DETAIL_CAP", 25),
		Summarize:     getbool("SUMMARIZE", false),
		StaleWindow:   time.Duration(getint("STALE_MINUTES", 360)) * time.Minute,
		RefreshSecret: os.Getenv("REFRESH_SECRET"),
		FetchTimeout:  time.Duration(getint("FETCH_TIMEOUT_SECONDS", 20)) * time.Second,
		OllamaHost:    getenv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:   getenv("OLLAMA_MODEL", "llama3.2"),
		JWTSecret:     getenv("JWT_SECRET", "dev-secret-change-me"),
	}
	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				s.CORSOrigins = append(s.CORSOrigins, o)
			}
		}
	} else {
		s.CORSOrigins = []string{"*"}
	}
	return s
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getbool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// Validate catches configuration mistakes that would otherwise surface
// as confusing runtime failures.
func (s Settings) Validate() error {
	if s.DataDir == "" && s.DatabaseURL == "" {
		return fmt.Errorf("either DATA_DIR or DATABASE_URL must be set")
	}
	return nil
}
