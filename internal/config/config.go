package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the station needs at startup. Values come
// from configs/config.yml; missing keys fall back to the defaults
// below so a bare deployment still comes up against the lab broker.
type Config struct {
	LogLevel string
	HTTPPort string

	MQTTServer   string
	MQTTPort     int
	MQTTSecure   bool
	MQTTCAFile   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	MuteDurationSeconds int
	BuzzerEnabled       bool

	SupabaseURL     string
	SupabaseAnonKey string

	// DisplayUTCOffsetHours shifts realtime commit timestamps for the
	// operator display. Guatemala runs at UTC-6 year round.
	DisplayUTCOffsetHours int
}

const minMuteSeconds = 1

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("port", "8080")
	viper.SetDefault("mqtt.server", "j0661b06.ala.us-east-1.emqxsl.com")
	viper.SetDefault("mqtt.port", 8883)
	viper.SetDefault("mqtt.secure", true)
	viper.SetDefault("mqtt.ca_file", "certs/emqxsl-ca.crt")
	viper.SetDefault("mqtt.client_id", "hmi-cli")
	viper.SetDefault("mqtt.username", "test")
	viper.SetDefault("mqtt.password", "test")
	viper.SetDefault("mute.duration_seconds", 600)
	viper.SetDefault("buzzer.enabled", true)
	viper.SetDefault("supabase.url", "")
	viper.SetDefault("supabase.anon_key", "")
	viper.SetDefault("realtime.display_utc_offset_hours", -6)
}

// Load reads configs/config.yml. A missing file is not an error: the
// defaults describe a working station, and ops may mount config later.
func Load() (*Config, error) {
	viper.AddConfigPath("configs")
	viper.SetConfigName("config")
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return &Config{
		LogLevel:              viper.GetString("log.level"),
		HTTPPort:              viper.GetString("port"),
		MQTTServer:            viper.GetString("mqtt.server"),
		MQTTPort:              viper.GetInt("mqtt.port"),
		MQTTSecure:            viper.GetBool("mqtt.secure"),
		MQTTCAFile:            viper.GetString("mqtt.ca_file"),
		MQTTClientID:          viper.GetString("mqtt.client_id"),
		MQTTUsername:          viper.GetString("mqtt.username"),
		MQTTPassword:          viper.GetString("mqtt.password"),
		MuteDurationSeconds:   viper.GetInt("mute.duration_seconds"),
		BuzzerEnabled:         viper.GetBool("buzzer.enabled"),
		SupabaseURL:           viper.GetString("supabase.url"),
		SupabaseAnonKey:       viper.GetString("supabase.anon_key"),
		DisplayUTCOffsetHours: viper.GetInt("realtime.display_utc_offset_hours"),
	}, nil
}

// MuteDuration returns the configured mute window, floored at one
// second so a zeroed config can never produce an instant-expiring mute.
func (c *Config) MuteDuration() time.Duration {
	secs := c.MuteDurationSeconds
	if secs < minMuteSeconds {
		secs = minMuteSeconds
	}
	return time.Duration(secs) * time.Second
}

// RealtimeConfigured reports whether the realtime loop has enough
// configuration to run at all.
func (c *Config) RealtimeConfigured() bool {
	return c.SupabaseURL != "" && c.SupabaseAnonKey != ""
}

// DisplayLocation builds the fixed-offset zone used to render realtime
// commit timestamps.
func (c *Config) DisplayLocation() *time.Location {
	return time.FixedZone("display", c.DisplayUTCOffsetHours*3600)
}
