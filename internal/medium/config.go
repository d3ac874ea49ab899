package medium

import (
	"fmt"

	"github.com/spf13/viper"
)

// CardConfig holds configuration for attaching a card image
type CardConfig struct {
	ImagePath   string `mapstructure:"image_path"`
	DeviceID    int    `mapstructure:"device_id"`
	WritePolicy string `mapstructure:"write_policy"`
	WearSkip    int    `mapstructure:"wear_skip"`
	VerifyReads bool   `mapstructure:"verify_reads"`
	LazyMap     bool   `mapstructure:"lazy_map"`
}

// SetConfigDefaults registers the default card settings on v
func SetConfigDefaults(v *viper.Viper) {
	v.SetDefault("image_path", "./card.img")
	v.SetDefault("device_id", 0x73) // 16MB card
	v.SetDefault("write_policy", "allocate")
	v.SetDefault("wear_skip", 16)
	v.SetDefault("verify_reads", false)
	v.SetDefault("lazy_map", false)
}

// LoadCardConfig loads card configuration using the global Viper instance
func LoadCardConfig() (*CardConfig, error) {
	v := viper.GetViper()
	v.SetConfigName("smartmedia-config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.smartmedia")
	v.AddConfigPath("/etc/smartmedia")

	// Allow environment variables
	v.SetEnvPrefix("SMARTMEDIA")
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return LoadCardConfigFrom(v)
}

// LoadCardConfigFrom decodes card configuration from an existing Viper instance
func LoadCardConfigFrom(v *viper.Viper) (*CardConfig, error) {
	SetConfigDefaults(v)

	var config CardConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the ranges of the numeric settings
func (c *CardConfig) Validate() error {
	if c.DeviceID < 0 || c.DeviceID > 0xFF {
		return fmt.Errorf("device_id 0x%x does not fit in one byte", c.DeviceID)
	}
	if c.WearSkip < 0 {
		return fmt.Errorf("wear_skip must not be negative, got %d", c.WearSkip)
	}
	if c.ImagePath == "" {
		return fmt.Errorf("image_path is required")
	}
	return nil
}
