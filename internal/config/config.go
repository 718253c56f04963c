package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/omega-realm/pokeidle/internal/game"
	"github.com/omega-realm/pokeidle/internal/handlers"
	"github.com/omega-realm/pokeidle/internal/hub"
	"github.com/omega-realm/pokeidle/internal/models"
	"github.com/omega-realm/pokeidle/internal/persist"
	"github.com/omega-realm/pokeidle/internal/refdata"
	"github.com/omega-realm/pokeidle/internal/ws"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Store backends
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Config is everything the server reads from the environment. Database and
// Redis settings are loaded by their own packages.
type Config struct {
	Server      ServerConfig
	Hub         hub.Config
	Tuning      game.Tuning
	Salt        uint64
	Saver       persist.SaverConfig
	WS          ws.Config
	Auth        AuthConfig
	Log         LogConfig
	Starter     handlers.Starter
	Store       string
	AutoMigrate bool
	UseRedis    bool
	PresenceTTL time.Duration
}

// LoadDotEnv loads .env from the working directory when present
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("[Config] Failed to read .env: %v", err)
		}
		return
	}
	log.Println("[Config] Loaded environment from .env")
}

// Load builds the configuration from environment variables
func Load() (*Config, error) {
	port := GetEnv("PORT", "8080")
	if !strings.HasPrefix(port, ":") && !strings.Contains(port, ":") {
		port = ":" + port
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:            port,
			ReadTimeout:     GetEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    GetEnvAsDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     GetEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: GetEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Hub:    loadHub(),
		Tuning: loadTuning(),
		Salt:   uint64(GetEnvAsInt("SIM_SALT", 0)),
		Saver: persist.SaverConfig{
			Workers: GetEnvAsInt("SAVE_WORKERS", 4),
			Retry:   loadRetry("SAVE_RETRY", persist.DefaultRetryPolicy()),
		},
		WS: loadWS(),
		Auth: AuthConfig{
			JWTSecret: GetEnv("JWT_SECRET", defaultJWTSecret),
			TokenTTL:  GetEnvAsDuration("JWT_TTL", 24*time.Hour),
		},
		Log: LogConfig{
			Level:  GetEnv("LOG_LEVEL", "info"),
			Format: GetEnv("LOG_FORMAT", "console"),
		},
		Starter: handlers.Starter{
			SpeciesID: GetEnvAsInt("STARTER_SPECIES", refdata.StarterSpeciesID),
			Level:     GetEnvAsInt("STARTER_LEVEL", 5),
			ZoneID:    GetEnvAsInt("STARTER_ZONE", refdata.ZoneRoute1),
			Inventory: models.Inventory{
				PokeBalls: GetEnvAsInt("STARTER_POKE_BALLS", 10),
				Money:     int64(GetEnvAsInt("STARTER_MONEY", 500)),
			},
		},
		Store:       strings.ToLower(GetEnv("STORE", StorePostgres)),
		AutoMigrate: GetEnvAsBool("AUTO_MIGRATE", true),
		UseRedis:    GetEnvAsBool("USE_REDIS", true),
		PresenceTTL: GetEnvAsDuration("PRESENCE_TTL", 90*time.Second),
	}

	if cfg.Store != StorePostgres && cfg.Store != StoreMemory {
		return nil, errors.New("STORE must be postgres or memory")
	}
	if cfg.Hub.TickInterval <= 0 {
		return nil, errors.New("TICK_INTERVAL must be positive")
	}
	if cfg.Tuning.EncounterChance < 0 || cfg.Tuning.EncounterChance > 1 ||
		cfg.Tuning.FleeChance < 0 || cfg.Tuning.FleeChance > 1 {
		return nil, errors.New("ENCOUNTER_CHANCE and FLEE_CHANCE must be within [0, 1]")
	}
	if cfg.Auth.JWTSecret == defaultJWTSecret {
		log.Println("[Config] JWT_SECRET not set, using the development default")
	}
	return cfg, nil
}

func loadHub() hub.Config {
	d := hub.DefaultConfig()
	return hub.Config{
		TickInterval:     GetEnvAsDuration("TICK_INTERVAL", d.TickInterval),
		GracePeriod:      GetEnvAsDuration("GRACE_PERIOD", d.GracePeriod),
		InboxSize:        GetEnvAsInt("INBOX_SIZE", d.InboxSize),
		SaveEveryTicks:   GetEnvAsInt("SAVE_EVERY_TICKS", d.SaveEveryTicks),
		LoadRetry:        loadRetry("LOAD_RETRY", d.LoadRetry),
		ShutdownSave:     GetEnvAsDuration("SHUTDOWN_SAVE_TIMEOUT", d.ShutdownSave),
		ChatPerSecond:    GetEnvAsFloat("CHAT_PER_SECOND", d.ChatPerSecond),
		ChatBurst:        GetEnvAsInt("CHAT_BURST", d.ChatBurst),
		MaxChatLength:    GetEnvAsInt("MAX_CHAT_LENGTH", d.MaxChatLength),
		RareCatchRate:    GetEnvAsInt("RARE_CATCH_RATE", d.RareCatchRate),
		LevelMilestone:   GetEnvAsInt("LEVEL_MILESTONE", d.LevelMilestone),
		BoardInterval:    GetEnvAsDuration("LEADERBOARD_INTERVAL", d.BoardInterval),
		BoardLimit:       GetEnvAsInt("LEADERBOARD_LIMIT", d.BoardLimit),
		AggregateTimeout: GetEnvAsDuration("AGGREGATE_TIMEOUT", d.AggregateTimeout),
	}
}

func loadTuning() game.Tuning {
	d := game.DefaultTuning()
	return game.Tuning{
		EncounterChance: GetEnvAsFloat("ENCOUNTER_CHANCE", d.EncounterChance),
		FleeChance:      GetEnvAsFloat("FLEE_CHANCE", d.FleeChance),
		MaxTurns:        GetEnvAsInt("MAX_TURNS", d.MaxTurns),
		MovePower:       GetEnvAsInt("MOVE_POWER", d.MovePower),
		BallModifiers: map[models.BallType]float64{
			models.BallPoke:  GetEnvAsFloat("POKEBALL_MODIFIER", d.BallModifiers[models.BallPoke]),
			models.BallGreat: GetEnvAsFloat("GREATBALL_MODIFIER", d.BallModifiers[models.BallGreat]),
			models.BallUltra: GetEnvAsFloat("ULTRABALL_MODIFIER", d.BallModifiers[models.BallUltra]),
		},
		XPDivisor:             GetEnvAsInt("XP_DIVISOR", d.XPDivisor),
		MoneyPerLevel:         int64(GetEnvAsInt("MONEY_PER_LEVEL", int(d.MoneyPerLevel))),
		AutoConfirmEvolutions: GetEnvAsBool("AUTO_CONFIRM_EVOLUTIONS", d.AutoConfirmEvolutions),
	}
}

func loadRetry(prefix string, d persist.RetryPolicy) persist.RetryPolicy {
	return persist.RetryPolicy{
		Attempts: GetEnvAsInt(prefix+"_ATTEMPTS", d.Attempts),
		Initial:  GetEnvAsDuration(prefix+"_INITIAL", d.Initial),
		Max:      GetEnvAsDuration(prefix+"_MAX", d.Max),
	}
}

func loadWS() ws.Config {
	d := ws.DefaultConfig()
	cfg := ws.Config{
		SendBuffer:     GetEnvAsInt("WS_SEND_BUFFER", d.SendBuffer),
		ReadLimit:      int64(GetEnvAsInt("WS_READ_LIMIT", int(d.ReadLimit))),
		WriteWait:      GetEnvAsDuration("WS_WRITE_WAIT", d.WriteWait),
		PongWait:       GetEnvAsDuration("WS_PONG_WAIT", d.PongWait),
		ConnectTimeout: GetEnvAsDuration("WS_CONNECT_TIMEOUT", d.ConnectTimeout),
	}
	cfg.PingPeriod = cfg.PongWait * 9 / 10
	return cfg
}
