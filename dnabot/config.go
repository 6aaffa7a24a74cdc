package dnabot

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/duetnight/dnabot/dnabot/announce"
	"github.com/duetnight/dnabot/dnabot/database"
	"github.com/duetnight/dnabot/dnabot/mh"
	"github.com/duetnight/dnabot/dnabot/services"
	"github.com/duetnight/dnabot/dnabot/signin"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	cfg := DefaultConfig()
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig is the baseline the toml file overrides.
func DefaultConfig() Config {
	return Config{
		Data:     DataConfig{Dir: "data"},
		Sign:     signin.DefaultConfig(),
		MH:       mh.DefaultConfig(),
		Announce: announce.DefaultConfig(),
	}
}

type Config struct {
	Log      LogConfig             `toml:"log"`
	Bot      BotConfig             `toml:"bot"`
	DB       database.DBConfig     `toml:"db"`
	Data     DataConfig            `toml:"data"`
	Sign     signin.Config         `toml:"sign"`
	MH       mh.Config             `toml:"mh"`
	Announce announce.Config       `toml:"announce"`
	Spaces   services.SpacesConfig `toml:"spaces"`
}

type BotConfig struct {
	DevGuilds []snowflake.ID `toml:"dev_guilds"`
	Token     string         `toml:"token"`
	// MasterChannel receives the scheduled-run operator summaries. Empty
	// disables them.
	MasterChannel string `toml:"master_channel"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

// DataConfig locates the on-disk state directory: alias tables, reply
// templates, announcement seen ids.
type DataConfig struct {
	Dir string `toml:"dir"`
}
