package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for lifetime fields, which allows
// parsing both string values such as "1h" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddr         string         `json:"endpoint_addr"`
	DatabaseDSN          string         `json:"database_dsn"`
	SecretKey            string         `json:"secret_key"`
	AccessTokenValidity  timex.Duration `json:"access_token_validity"`
	RefreshTokenValidity timex.Duration `json:"refresh_token_validity"`
	BcryptCost           int            `json:"bcrypt_cost"`
	SecureCookies        *bool          `json:"secure_cookies"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags; when
// neither is set, no JSON file is loaded. If the file cannot be read or
// contains invalid JSON, the function panics: a broken config file is a
// deployment error, not something to limp past.
//
// Zero values in the file leave the corresponding Config field untouched,
// so the file only needs to name the settings it overrides.
func parseJson(config *Config) {

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

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.AccessTokenValidity.Duration != 0 {
		config.AccessTokenValidity = time.Duration(c.AccessTokenValidity.Duration)
	}
	if c.RefreshTokenValidity.Duration != 0 {
		config.RefreshTokenValidity = time.Duration(c.RefreshTokenValidity.Duration)
	}
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.SecureCookies != nil {
		config.SecureCookies = *c.SecureCookies
	}
}
