package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/avasilyev-dev/authkeeper/internal/flagx"
	"github.com/avasilyev-dev/authkeeper/internal/server/federation"
	"github.com/avasilyev-dev/authkeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "15m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into
// the runtime Config struct which uses time.Duration.
type JsonConfig struct {
	DatabaseDSN                  string                                `json:"database_dsn"`
	AccessTokenSecret            string                                `json:"access_token_secret"`
	RefreshTokenSecret           string                                `json:"refresh_token_secret"`
	AccessTokenValidityDuration  timex.Duration                        `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration                        `json:"refresh_token_validity_duration"`
	OtpValidityDuration          timex.Duration                        `json:"otp_validity_duration"`
	OtpCooldown                  timex.Duration                        `json:"otp_cooldown"`
	OtpMaxAttempts               int                                   `json:"otp_max_attempts"`
	SweepInterval                timex.Duration                        `json:"sweep_interval"`
	OIDCProviders                map[string]federation.ProviderConfig `json:"oidc_providers"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path is taken from the -c or -config command-line flags; if
// neither is set, no JSON file is loaded. If the file cannot be read or
// contains invalid JSON, the function panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.DatabaseDSN = c.DatabaseDSN
	config.AccessTokenSecret = c.AccessTokenSecret
	config.RefreshTokenSecret = c.RefreshTokenSecret
	config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityDuration.Duration)
	config.RefreshTokenValidityDuration = time.Duration(c.RefreshTokenValidityDuration.Duration)
	config.OtpValidityDuration = time.Duration(c.OtpValidityDuration.Duration)
	config.OtpCooldown = time.Duration(c.OtpCooldown.Duration)
	config.OtpMaxAttempts = c.OtpMaxAttempts
	config.SweepInterval = time.Duration(c.SweepInterval.Duration)
	config.OIDCProviders = c.OIDCProviders
}
