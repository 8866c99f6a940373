package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"tcr-arena/internal/models"
	"tcr-arena/internal/persistence"
)

const (
	// EnvPrefix is prepended to every environment override, e.g. TCR_SERVER_ADDR.
	EnvPrefix = "TCR"
	// FileName is the config file searched for when none is given.
	FileName = ".tcr-arena"
	// DotEnvFile is loaded into the environment before viper reads it.
	DotEnvFile = ".env"
)

// Config is the resolved server configuration.
type Config struct {
	Addr         string
	StorageDir   string
	QueueMaxWait time.Duration
	SendBuffer   int
	WriteWait    time.Duration
	ArenaFile    string
	Game         models.GameConfig
	ConfigFile   string
}

// NewViper returns a viper instance with the defaults and env bindings in place.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":4000")
	v.SetDefault("storage.dir", "data")
	v.SetDefault("queue.max_wait", time.Duration(0))
	v.SetDefault("ws.send_buffer", 64)
	v.SetDefault("ws.write_wait", 10*time.Second)
	return v
}

// Load reads the optional .env file and config file into v and resolves the game rules.
// An explicit cfgFile must exist; the searched default may be absent. The returned game
// config is validated, so any error here is fatal for the server.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath("/etc/tcr-arena")
		v.SetConfigName(FileName)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Addr:         v.GetString("server.addr"),
		StorageDir:   v.GetString("storage.dir"),
		QueueMaxWait: v.GetDuration("queue.max_wait"),
		SendBuffer:   v.GetInt("ws.send_buffer"),
		WriteWait:    v.GetDuration("ws.write_wait"),
		ArenaFile:    v.GetString("game.arena_file"),
		ConfigFile:   v.ConfigFileUsed(),
	}
	if cfg.QueueMaxWait < 0 {
		return nil, fmt.Errorf("%w: queue.max_wait must not be negative", models.ErrInvalidConfig)
	}

	game := models.DefaultGameConfig()
	if cfg.ArenaFile != "" {
		loaded, err := persistence.LoadArenaConfig(cfg.ArenaFile)
		if err != nil {
			return nil, err
		}
		game = loaded
	}
	applyRuleOverrides(v, &game)
	if err := game.Validate(); err != nil {
		return nil, err
	}
	cfg.Game = game
	return cfg, nil
}

// applyRuleOverrides lets the config file or environment tune individual rules on top of
// the arena layout.
func applyRuleOverrides(v *viper.Viper, game *models.GameConfig) {
	floats := map[string]*float64{
		"game.engagement_radius": &game.Rules.EngagementRadius,
		"game.starting_elixir":   &game.Rules.StartingElixir,
		"game.max_elixir":        &game.Rules.MaxElixir,
		"game.elixir_per_tick":   &game.Rules.ElixirPerTick,
		"game.unit_health":       &game.Unit.Health,
		"game.unit_damage":       &game.Unit.Damage,
		"game.unit_speed":        &game.Unit.Speed,
	}
	for key, dst := range floats {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}
	if v.IsSet("game.tick_rate") {
		game.Rules.TickRate = v.GetInt("game.tick_rate")
	}
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
