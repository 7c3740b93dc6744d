package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"

	"klockd/internal/event"
)

type EventsConfig struct {
	Stage1Days int `mapstructure:"stage1_days"`
	Stage2Days int `mapstructure:"stage2_days"`
	Stage3Days int `mapstructure:"stage3_days"`

	Stage1Colour string `mapstructure:"stage1_colour"`
	Stage2Colour string `mapstructure:"stage2_colour"`
	Stage3Colour string `mapstructure:"stage3_colour"`
	NowColour    string `mapstructure:"now_colour"`
}

type Config struct {
	EventsPath    string       `mapstructure:"events_path"`
	FriendsPath   string       `mapstructure:"friends_path"`
	HistoryDBPath string       `mapstructure:"history_db_path"`
	SocketPath    string       `mapstructure:"socket_path"`
	TickSeconds   int          `mapstructure:"tick_seconds"`
	Events        EventsConfig `mapstructure:"events"`
}

func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/klock")
		viper.AddConfigPath("/etc/klock/")
	}

	viper.SetEnvPrefix("KLOCK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("events_path", "events.csv")
	viper.SetDefault("friends_path", "friends.csv")
	viper.SetDefault("history_db_path", "klock.db")
	viper.SetDefault("socket_path", "/tmp/klockd.sock")
	viper.SetDefault("tick_seconds", 1)
	viper.SetDefault("events.stage1_days", 5)
	viper.SetDefault("events.stage2_days", 10)
	viper.SetDefault("events.stage3_days", 30)
	viper.SetDefault("events.stage1_colour", "red")
	viper.SetDefault("events.stage2_colour", "yellow")
	viper.SetDefault("events.stage3_colour", "green")
	viper.SetDefault("events.now_colour", "blue")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("Config file not found, using defaults.")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.TickSeconds < 1 {
		log.Println("Warning: tick_seconds too low, setting to 1")
		cfg.TickSeconds = 1
	}
	if cfg.Events.Stage1Days < 1 || cfg.Events.Stage2Days < cfg.Events.Stage1Days ||
		cfg.Events.Stage3Days < cfg.Events.Stage2Days {
		log.Printf("Warning: event stage days %d/%d/%d are not ascending, using defaults 5/10/30",
			cfg.Events.Stage1Days, cfg.Events.Stage2Days, cfg.Events.Stage3Days)
		cfg.Events.Stage1Days = 5
		cfg.Events.Stage2Days = 10
		cfg.Events.Stage3Days = 30
	}

	return &cfg, nil
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickSeconds) * time.Second
}

// Thresholds converts the configured day counts into the stage windows.
func (e EventsConfig) Thresholds() event.Thresholds {
	return event.Thresholds{
		Stage1: time.Duration(e.Stage1Days) * 24 * time.Hour,
		Stage2: time.Duration(e.Stage2Days) * 24 * time.Hour,
		Stage3: time.Duration(e.Stage3Days) * 24 * time.Hour,
	}
}

// StageColour maps a stage to its configured display colour. Colours
// are a caller-side display concern; the stores never interpret them.
func (e EventsConfig) StageColour(s event.Stage) string {
	switch s {
	case event.Stage1:
		return e.Stage1Colour
	case event.Stage2:
		return e.Stage2Colour
	case event.Stage3:
		return e.Stage3Colour
	case event.StageNow:
		return e.NowColour
	}
	return ""
}
