// Package config carica la configurazione dall'ambiente
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"cyoa-editor/story"
)

// Prefix prefisso delle variabili d'ambiente
const Prefix = "CYOA"

// Config contiene tutte le impostazioni di editor, player e backend
type Config struct {
	Env         string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"console"`

	// Backend
	HTTPPort           string        `envconfig:"HTTP_PORT" default:"8000"`
	DatabaseDSN        string        `envconfig:"DATABASE_DSN"`
	JWTSecret          string        `envconfig:"JWT_SECRET"`
	AccessTokenTTL     time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"24h"`
	CORSAllowedOrigins string        `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173,http://127.0.0.1:5173"`

	// Client
	APIURL         string        `envconfig:"API_URL" default:"http://127.0.0.1:8000"`
	APIToken       string        `envconfig:"API_TOKEN"`
	PlayerName     string        `envconfig:"PLAYER_NAME"`
	LocalStatePath string        `envconfig:"LOCAL_STATE_PATH" default:"cyoa-local.db"`
	HTTPTimeout    time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`

	// Export
	TweegoPath string `envconfig:"TWEEGO_PATH" default:"tweego"`
	OutputDir  string `envconfig:"OUTPUT_DIR" default:"output"`
}

// developmentSecret viene usato solo fuori da produzione quando manca JWT_SECRET
const developmentSecret = "cyoa-development-secret"

// Load legge un file .env opzionale e poi l'ambiente. envFile vuoto
// significa ".env" nella directory corrente.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.PlayerName == "" {
		cfg.PlayerName = story.DefaultPlayerName
	}
	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("CYOA_JWT_SECRET is required in production")
		}
		cfg.JWTSecret = developmentSecret
	}
	return &cfg, nil
}

// IsProduction dice se l'ambiente è di produzione
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// AllowedOrigins restituisce le origini CORS come lista
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

// Addr indirizzo di ascolto del server
func (c *Config) Addr() string {
	return ":" + c.HTTPPort
}
