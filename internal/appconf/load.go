package appconf

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name, so the port is
// read from MOUZAMAP_PORT.
const EnvPrefix = "MOUZAMAP"

// Keys shared by flags, environment variables and config files.
const (
	KeyPort          = "port"
	KeyEnv           = "env"
	KeyAPIKeys       = "api-keys"
	KeyAdminKey      = "admin-key"
	KeyVerbose       = "verbose"
	KeyRateLimit     = "rate-limit"
	KeyDataDir       = "data-dir"
	KeyDistrictsFile = "districts-file"
	KeyMouzasFile    = "mouzas-file"
	KeyDistrictKeys  = "district-keys"
	KeyMouzaKeys     = "mouza-keys"
	KeyUseSample     = "sample"
	KeyCatalogPath   = "catalog"
	KeyWebDir        = "web-dir"
	KeyLogFormat     = "log-format"
	KeyLogLevel      = "log-level"
	KeyConfigFile    = "config"
)

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Port:          4000,
		Env:           Development,
		ApiKeys:       []string{},
		RateLimit:     100,
		DataDir:       "data",
		DistrictsFile: "districts.geojson",
		MouzasFile:    "mouzas.geojson",
		DistrictKeys:  []string{"DISTRICT", "name"},
		MouzaKeys:     []string{"MOUZA_NAME", "name"},
		UseSample:     true,
		CatalogPath:   ":memory:",
		WebDir:        "web",
		LogFormat:     "text",
		LogLevel:      "info",
	}
}

// RegisterFlags adds every configuration flag to flags with its default.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Defaults()
	flags.Int(KeyPort, d.Port, "API server port")
	flags.String(KeyEnv, d.Env.String(), "environment (development|test|production)")
	flags.String(KeyAPIKeys, "", "comma separated API keys")
	flags.String(KeyAdminKey, "", "key required by administrative endpoints")
	flags.Bool(KeyVerbose, d.Verbose, "verbose logging")
	flags.Int(KeyRateLimit, d.RateLimit, "requests per second allowed per API key (0 disables limiting)")
	flags.String(KeyDataDir, d.DataDir, "directory holding boundary files")
	flags.String(KeyDistrictsFile, d.DistrictsFile, "district GeoJSON file, optionally .gz")
	flags.String(KeyMouzasFile, d.MouzasFile, "mouza GeoJSON file, optionally .gz")
	flags.StringSlice(KeyDistrictKeys, d.DistrictKeys, "property keys tried in order for district names")
	flags.StringSlice(KeyMouzaKeys, d.MouzaKeys, "property keys tried in order for mouza names")
	flags.Bool(KeyUseSample, d.UseSample, "serve built-in sample boundaries when files are missing")
	flags.String(KeyCatalogPath, d.CatalogPath, "SQLite path for the place-name catalog")
	flags.String(KeyWebDir, d.WebDir, "directory of static map assets served at /")
	flags.String(KeyLogFormat, d.LogFormat, "log format (text|json)")
	flags.String(KeyLogLevel, d.LogLevel, "log level (debug|info|warn|error)")
	flags.String(KeyConfigFile, "", "optional config file (json, yaml or toml)")
}

// Load resolves configuration from, in increasing priority: defaults, the
// optional config file, a .env file in the working directory, MOUZAMAP_*
// environment variables, and flags that were explicitly set.
func Load(flags *pflag.FlagSet) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("reading .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("binding flags: %w", err)
		}
	}

	if path := v.GetString(KeyConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	return fromViper(v), nil
}

// LoadFromFile reads a config file on its own, without flags or
// environment. Missing keys keep their defaults.
func LoadFromFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return fromViper(v), nil
}

func fromViper(v *viper.Viper) Config {
	d := Defaults()
	v.SetDefault(KeyPort, d.Port)
	v.SetDefault(KeyEnv, d.Env.String())
	v.SetDefault(KeyRateLimit, d.RateLimit)
	v.SetDefault(KeyDataDir, d.DataDir)
	v.SetDefault(KeyDistrictsFile, d.DistrictsFile)
	v.SetDefault(KeyMouzasFile, d.MouzasFile)
	v.SetDefault(KeyDistrictKeys, d.DistrictKeys)
	v.SetDefault(KeyMouzaKeys, d.MouzaKeys)
	v.SetDefault(KeyUseSample, d.UseSample)
	v.SetDefault(KeyCatalogPath, d.CatalogPath)
	v.SetDefault(KeyWebDir, d.WebDir)
	v.SetDefault(KeyLogFormat, d.LogFormat)
	v.SetDefault(KeyLogLevel, d.LogLevel)

	return Config{
		Port:          v.GetInt(KeyPort),
		Env:           EnvFlagToEnvironment(v.GetString(KeyEnv)),
		ApiKeys:       keyList(v.Get(KeyAPIKeys)),
		AdminKey:      v.GetString(KeyAdminKey),
		Verbose:       v.GetBool(KeyVerbose),
		RateLimit:     v.GetInt(KeyRateLimit),
		DataDir:       v.GetString(KeyDataDir),
		DistrictsFile: v.GetString(KeyDistrictsFile),
		MouzasFile:    v.GetString(KeyMouzasFile),
		DistrictKeys:  keyList(v.Get(KeyDistrictKeys)),
		MouzaKeys:     keyList(v.Get(KeyMouzaKeys)),
		UseSample:     v.GetBool(KeyUseSample),
		CatalogPath:   v.GetString(KeyCatalogPath),
		WebDir:        v.GetString(KeyWebDir),
		LogFormat:     v.GetString(KeyLogFormat),
		LogLevel:      v.GetString(KeyLogLevel),
	}
}

// keyList accepts a comma separated string (flags, environment) or a list
// (config files).
func keyList(raw any) []string {
	switch x := raw.(type) {
	case nil:
		return []string{}
	case string:
		return ParseAPIKeys(x)
	case []string:
		if len(x) == 1 {
			return ParseAPIKeys(x[0])
		}
		out := make([]string, 0, len(x))
		for _, s := range x {
			out = append(out, strings.TrimSpace(s))
		}
		return out
	case []any:
		out := make([]string, 0, len(x))
		for _, s := range x {
			out = append(out, strings.TrimSpace(fmt.Sprint(s)))
		}
		return out
	default:
		return ParseAPIKeys(fmt.Sprint(x))
	}
}
