// Package config loads wayfinder settings from defaults, an optional TOML file and WAYFINDER_ env vars
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lixenwraith/wayfinder/audio"
	"github.com/lixenwraith/wayfinder/guidance"
	"github.com/lixenwraith/wayfinder/network"
	"github.com/lixenwraith/wayfinder/protocol"
	"github.com/lixenwraith/wayfinder/replication"
	"github.com/lixenwraith/wayfinder/waypoint"
)

// EnvPrefix prefixes every environment override, keys map with . replaced by _
const EnvPrefix = "WAYFINDER"

// Config holds application configuration
type Config struct {
	Sync     SyncConfig     `mapstructure:"sync"`
	Network  NetworkConfig  `mapstructure:"network"`
	Guidance GuidanceConfig `mapstructure:"guidance"`
	Audio    AudioConfig    `mapstructure:"audio"`
	Save     SaveConfig     `mapstructure:"save"`
	Status   StatusConfig   `mapstructure:"status"`
	UI       UIConfig       `mapstructure:"ui"`
}

// SyncConfig selects the replication role and protocol bounds
type SyncConfig struct {
	Role           string `mapstructure:"role"`
	MaxWaypoints   int    `mapstructure:"max_waypoints"`
	MaxNameBytes   int    `mapstructure:"max_name_bytes"`
	AnnounceOnSync bool   `mapstructure:"announce_on_sync"`
}

// NetworkConfig holds transport settings
type NetworkConfig struct {
	Transport         string        `mapstructure:"transport"`
	Address           string        `mapstructure:"address"`
	Path              string        `mapstructure:"path"`
	MaxPeers          int           `mapstructure:"max_peers"`
	MaxMessageSize    int           `mapstructure:"max_message_size"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

// GuidanceConfig tunes the ping scheduler
type GuidanceConfig struct {
	TileSize     float64 `mapstructure:"tile_size"`
	ArrivalTiles float64 `mapstructure:"arrival_tiles"`
	DelayPerTile float64 `mapstructure:"delay_per_tile"`
	MinDelay     uint64  `mapstructure:"min_delay"`
	MaxDelay     uint64  `mapstructure:"max_delay"`
	PitchSpan    float64 `mapstructure:"pitch_span"`
	PitchLimit   float64 `mapstructure:"pitch_limit"`
	BaseVolume   float64 `mapstructure:"base_volume"`
	VolumeGain   float64 `mapstructure:"volume_gain"`
	MaxVolume    float64 `mapstructure:"max_volume"`
}

// AudioConfig toggles tone output
type AudioConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	MasterVolume float64 `mapstructure:"master_volume"`
}

// SaveConfig locates the world save document
type SaveConfig struct {
	Path string `mapstructure:"path"`
}

// StatusConfig binds the status HTTP endpoint, empty address disables it
type StatusConfig struct {
	Address string `mapstructure:"address"`
}

// UIConfig holds terminal settings
type UIConfig struct {
	TickRate time.Duration `mapstructure:"tick_rate"`
}

func setDefaults(v *viper.Viper) {
	g := guidance.DefaultParams()
	n := network.DefaultConfig()
	l := protocol.DefaultLimits()

	v.SetDefault("sync.role", "none")
	v.SetDefault("sync.max_waypoints", l.MaxWaypoints)
	v.SetDefault("sync.max_name_bytes", l.MaxNameBytes)
	v.SetDefault("sync.announce_on_sync", true)

	v.SetDefault("network.transport", string(network.KindTCP))
	v.SetDefault("network.address", n.Address)
	v.SetDefault("network.path", n.Path)
	v.SetDefault("network.max_peers", n.MaxPeers)
	v.SetDefault("network.max_message_size", n.MaxMessageSize)
	v.SetDefault("network.connect_timeout", n.ConnectTimeout)
	v.SetDefault("network.read_timeout", n.ReadTimeout)
	v.SetDefault("network.write_timeout", n.WriteTimeout)
	v.SetDefault("network.heartbeat_interval", n.HeartbeatInterval)

	v.SetDefault("guidance.tile_size", g.TileSize)
	v.SetDefault("guidance.arrival_tiles", g.ArrivalTiles)
	v.SetDefault("guidance.delay_per_tile", g.DelayPerTile)
	v.SetDefault("guidance.min_delay", g.MinDelay)
	v.SetDefault("guidance.max_delay", g.MaxDelay)
	v.SetDefault("guidance.pitch_span", g.PitchSpan)
	v.SetDefault("guidance.pitch_limit", g.PitchLimit)
	v.SetDefault("guidance.base_volume", g.BaseVolume)
	v.SetDefault("guidance.volume_gain", g.VolumeGain)
	v.SetDefault("guidance.max_volume", g.MaxVolume)

	v.SetDefault("audio.enabled", true)
	v.SetDefault("audio.master_volume", audio.DefaultConfig().MasterVolume)

	v.SetDefault("save.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "wayfinder", "world.toml"))
	v.SetDefault("status.address", "")
	v.SetDefault("ui.tick_rate", 50*time.Millisecond)
}

// Load reads configuration from path, or WAYFINDER_CONFIG, or ~/.config/wayfinder/config.toml
// An explicitly named file must exist; the default location is optional
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	explicit := path != ""
	if explicit {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "wayfinder"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the components cannot run with
func (c Config) Validate() error {
	if _, err := c.Role(); err != nil {
		return err
	}
	if _, err := network.ParseKind(c.Network.Transport); err != nil {
		return err
	}
	if c.Sync.MaxWaypoints <= 0 {
		return fmt.Errorf("sync.max_waypoints must be positive, got %d", c.Sync.MaxWaypoints)
	}
	if c.Guidance.TileSize <= 0 {
		return fmt.Errorf("guidance.tile_size must be positive, got %v", c.Guidance.TileSize)
	}
	if c.Guidance.MinDelay > c.Guidance.MaxDelay {
		return fmt.Errorf("guidance.min_delay %d exceeds max_delay %d", c.Guidance.MinDelay, c.Guidance.MaxDelay)
	}
	if c.UI.TickRate <= 0 {
		return fmt.Errorf("ui.tick_rate must be positive, got %v", c.UI.TickRate)
	}
	return nil
}

// Role parses sync.role
func (c Config) Role() (replication.Role, error) {
	return replication.ParseRole(c.Sync.Role)
}

// Capacity bounds the local store by the configured ceiling
func (c Config) Capacity() int {
	return min(c.Sync.MaxWaypoints, waypoint.DefaultCapacity)
}

// Limits returns the decode bounds
func (c Config) Limits() protocol.Limits {
	return protocol.Limits{MaxWaypoints: c.Capacity(), MaxNameBytes: c.Sync.MaxNameBytes}
}

// GuidanceParams returns the scheduler tuning
func (c Config) GuidanceParams() guidance.Params {
	g := c.Guidance
	return guidance.Params{
		TileSize:     g.TileSize,
		ArrivalTiles: g.ArrivalTiles,
		DelayPerTile: g.DelayPerTile,
		MinDelay:     g.MinDelay,
		MaxDelay:     g.MaxDelay,
		PitchSpan:    g.PitchSpan,
		PitchLimit:   g.PitchLimit,
		BaseVolume:   g.BaseVolume,
		VolumeGain:   g.VolumeGain,
		MaxVolume:    g.MaxVolume,
	}
}

// AudioConfig returns tone output settings
func (c Config) AudioConfig() *audio.Config {
	a := audio.DefaultConfig()
	a.Enabled = c.Audio.Enabled
	a.MasterVolume = c.Audio.MasterVolume
	return a
}

// NetworkConfig maps the sync role onto a transport role: hosts serve, replicas dial
func (c Config) NetworkConfig() (*network.Config, error) {
	role, err := c.Role()
	if err != nil {
		return nil, err
	}
	kind, err := network.ParseKind(c.Network.Transport)
	if err != nil {
		return nil, err
	}

	n := network.DefaultConfig()
	switch role {
	case replication.RoleHost:
		n.Role = network.RoleServer
	case replication.RoleReplica:
		n.Role = network.RoleClient
	default:
		n.Role = network.RoleNone
	}
	n.Kind = kind
	n.Address = c.Network.Address
	n.Path = c.Network.Path
	n.MaxPeers = c.Network.MaxPeers
	n.MaxMessageSize = c.Network.MaxMessageSize
	n.ConnectTimeout = c.Network.ConnectTimeout
	n.ReadTimeout = c.Network.ReadTimeout
	n.WriteTimeout = c.Network.WriteTimeout
	n.HeartbeatInterval = c.Network.HeartbeatInterval
	return n, nil
}
