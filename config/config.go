// Package config loads the server's runtime configuration: network
// timing, room capacity, the deterministic physics constants every
// peer must agree on, and fixed-point precision. Values are read from
// a config file if present and overridden by environment variables,
// the same viper-based layering the wider stack uses for its own
// config packages.
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Room/server capacity defaults.
const (
	MaxPlayersPerRoom = 4
	MaxRoomsPerServer = 500
)

// NetworkConfig controls the lockstep tick and reconnect grace window.
type NetworkConfig struct {
	TickRate           int `mapstructure:"tickRate"`           // frames/second the server commits at
	FrameDeadlineMillis int `mapstructure:"frameDeadlineMillis"` // force-commit deadline per frame
	BufferSize         int `mapstructure:"bufferSize"`         // client-side render delay, in frames
	ReconnectGraceSecs int `mapstructure:"reconnectGraceSecs"` // how long a dropped seat is held open
	MaxAPM             int `mapstructure:"maxApm"`             // anti-cheat actions-per-minute ceiling
}

// PhysicsConfig mirrors the reference PhysicsEngine constants — every
// peer in a session must run with the identical values, so these are
// process-wide defaults rather than per-room overrides.
type PhysicsConfig struct {
	Gravity      float64 `mapstructure:"gravity"`
	Friction     float64 `mapstructure:"friction"`
	MaxVelocity  float64 `mapstructure:"maxVelocity"`
	WorldWidth   float64 `mapstructure:"worldWidth"`
	WorldHeight  float64 `mapstructure:"worldHeight"`
	EntityWidth  float64 `mapstructure:"entityWidth"`
	EntityHeight float64 `mapstructure:"entityHeight"`
	CellSize     float64 `mapstructure:"gridCellSize"`
}

// GameConfig holds the gameplay constants every peer must agree on:
// room sizing and the attack mechanic's range/damage/starting health.
type GameConfig struct {
	PlayerCount       int     `mapstructure:"playerCount"`
	MaxPlayersPerRoom int     `mapstructure:"maxPlayersPerRoom"`
	PlayerSpeed       float64 `mapstructure:"playerSpeed"`
	AttackRange       float64 `mapstructure:"attackRange"`
	AttackDamage      int     `mapstructure:"attackDamage"`
	DefaultHP         int     `mapstructure:"defaultHp"`
}

// HistoryConfig bounds replay/rollback/resync retention.
type HistoryConfig struct {
	MaxFrameHistory int `mapstructure:"maxFrameHistory"`
	MaxSnapshots    int `mapstructure:"maxSnapshots"`
}

// FixedPointConfig configures internal/fixedpoint's global precision.
type FixedPointConfig struct {
	FractionBits uint `mapstructure:"fractionBits"`
}

// Config is the full process configuration tree.
type Config struct {
	Host       string           `mapstructure:"host"`
	Port       int              `mapstructure:"port"`
	EnableCORS bool             `mapstructure:"enableCors"`
	Network    NetworkConfig    `mapstructure:"network"`
	Physics    PhysicsConfig    `mapstructure:"physics"`
	Game       GameConfig       `mapstructure:"game"`
	History    HistoryConfig    `mapstructure:"history"`
	FixedPoint FixedPointConfig `mapstructure:"fixedPoint"`
}

// Load reads server.{yaml,json,toml} from the working directory (or
// /etc/fsyncserver), falling back to built-in defaults for anything
// absent, then lets FSYNC_-prefixed environment variables override
// any key (e.g. FSYNC_NETWORK_TICKRATE=60).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("server")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/fsyncserver")

	v.SetEnvPrefix("fsync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("enableCors", true)

	v.SetDefault("network.tickRate", 30)
	v.SetDefault("network.frameDeadlineMillis", 1000)
	v.SetDefault("network.bufferSize", 3)
	v.SetDefault("network.reconnectGraceSecs", 30)
	v.SetDefault("network.maxApm", 600)

	v.SetDefault("physics.gravity", 980.0)
	v.SetDefault("physics.friction", 0.9)
	v.SetDefault("physics.maxVelocity", 1000.0)
	v.SetDefault("physics.worldWidth", 1920.0)
	v.SetDefault("physics.worldHeight", 1080.0)
	v.SetDefault("physics.gridCellSize", 64.0)
	v.SetDefault("physics.entityWidth", 32.0)
	v.SetDefault("physics.entityHeight", 32.0)

	v.SetDefault("game.playerCount", 2)
	v.SetDefault("game.maxPlayersPerRoom", 4)
	v.SetDefault("game.playerSpeed", 300.0)
	v.SetDefault("game.attackRange", 64.0)
	v.SetDefault("game.attackDamage", 10)
	v.SetDefault("game.defaultHp", 100)

	v.SetDefault("history.maxFrameHistory", 300)
	v.SetDefault("history.maxSnapshots", 60)

	v.SetDefault("fixedPoint.fractionBits", 16)
}

// Default returns a Config populated entirely from built-in defaults,
// bypassing file/env lookup — used by tests and by any entrypoint that
// wants a known-good baseline before applying Load's overrides.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}
