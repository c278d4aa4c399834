package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SERVERLESS"

// Setting keys. Flags with the same names are bound over them, and each
// maps to SERVERLESS_<KEY> with dashes as underscores.
const (
	KeyPlatformStage = "platform-stage"
	KeyAccessKey     = "access-key"
	KeyEngineURL     = "engine-url"
	KeySocketURL     = "socket-url"
	KeyTimeout       = "timeout"
	KeyStateDB       = "state-db"
)

// ConfigName is the base name of the optional project config file.
const ConfigName = "components"

// Endpoints are the engine backend addresses.
type Endpoints struct {
	HTTP   string
	Socket string
}

var (
	ProdEndpoints = Endpoints{
		HTTP:   "https://foerm0pfil.execute-api.us-east-1.amazonaws.com/prod",
		Socket: "wss://qtrusbzkq4.execute-api.us-east-1.amazonaws.com/prod",
	}
	DevEndpoints = Endpoints{
		HTTP:   "https://y6w6rsjkib.execute-api.us-east-1.amazonaws.com/dev",
		Socket: "wss://kiexxv95i8.execute-api.us-east-1.amazonaws.com/dev",
	}
)

// EndpointsFor returns the endpoints of a platform stage. Anything other
// than an empty stage or "prod" selects dev.
func EndpointsFor(platformStage string) Endpoints {
	if platformStage != "" && platformStage != "prod" {
		return DevEndpoints
	}
	return ProdEndpoints
}

// Config is the resolved CLI configuration.
type Config struct {
	PlatformStage string
	AccessKey     string
	Endpoints     Endpoints

	// Timeout bounds each remote component call; zero means none.
	Timeout time.Duration

	// StateDB is the sqlite database used for local state, empty for the
	// per-project file store.
	StateDB string

	// File is the config file that was read, if any.
	File string
}

// New returns a viper instance reading SERVERLESS_* variables and looking
// for the config file in dir.
func New(dir string) *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetConfigName(ConfigName)
	if dir != "" {
		v.AddConfigPath(dir)
	}
	return v
}

// Bind makes flags in fs override the environment and config file.
func Bind(v *viper.Viper, fs *pflag.FlagSet) error {
	return v.BindPFlags(fs)
}

// Load reads the config file when present and resolves the settings.
// Explicit engine or socket URLs override the stage defaults.
func Load(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		PlatformStage: v.GetString(KeyPlatformStage),
		AccessKey:     v.GetString(KeyAccessKey),
		Timeout:       v.GetDuration(KeyTimeout),
		StateDB:       v.GetString(KeyStateDB),
		File:          v.ConfigFileUsed(),
	}
	cfg.Endpoints = EndpointsFor(cfg.PlatformStage)
	if u := v.GetString(KeyEngineURL); u != "" {
		cfg.Endpoints.HTTP = strings.TrimRight(u, "/")
	}
	if u := v.GetString(KeySocketURL); u != "" {
		cfg.Endpoints.Socket = u
	}
	if cfg.Timeout < 0 {
		return Config{}, fmt.Errorf("%s must not be negative, got %s", KeyTimeout, cfg.Timeout)
	}
	return cfg, nil
}
