package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const prefix = "EDGEDELIVERY"

var conf Config

// Parse reads the configuration file given as parameter.
func Parse(confFile string) (*Config, error) {
	setDefault()

	viper.SetEnvPrefix(prefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	if len(confFile) > 0 {
		viper.SetConfigFile(confFile)

		err := viper.ReadInConfig()
		if err != nil {
			return &conf, fmt.Errorf("failed to read config file %v: %w", confFile, err)
		}
	}

	err := viper.Unmarshal(&conf)
	if err != nil {
		return &conf, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &conf, nil
}

func setDefault() {
	viper.SetDefault("logs.level", 4)
	viper.SetDefault("logs.encoder", EncoderTypeConsole)
	viper.SetDefault("defaultTimeout", "8s")
	viper.SetDefault("gracefulDuration", "10s")
	viper.SetDefault("metrics.port", 7777)
	viper.SetDefault("edge.domain", "edge.adobedc.net")
	viper.SetDefault("edge.requestTimeout", "5s")
	viper.SetDefault("queue.retryBaseDelay", "5s")
	viper.SetDefault("queue.retryMaxDelay", "60s")
	viper.SetDefault("hub.sdkVersion", "1.0.0")
	viper.SetDefault("hub.bootRetryInterval", "1s")
}
