// Package config loads client settings from defaults, a YAML file and
// SOAPX_* environment variables, in increasing order of priority.
package config

import (
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/cheyinl/soaptransport/logger"
	"github.com/cheyinl/soaptransport/transport"
)

// EnvPrefix prefixes every environment variable read by Load. Underscores
// separate levels: SOAPX_TRANSPORT_MAXATTEMPTS sets transport.maxattempts.
const EnvPrefix = "SOAPX_"

// Load reads the YAML file at path, when path is not empty, over the
// defaults, then applies environment variables.
func Load(path string) (*Config, error) {
	var src koanf.Provider
	if path != "" {
		src = file.Provider(path)
	}
	return load(src)
}

// LoadBytes is Load with YAML content instead of a file.
func LoadBytes(content []byte) (*Config, error) {
	return load(rawbytes.Provider(content))
}

func load(src koanf.Provider) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if src != nil {
		if err := k.Load(src, yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load yaml: %w", err)
		}
	}

	if err := k.Load(envprovider.Provider(".", envprovider.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				secondsToDuration,
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// secondsToDuration reads bare numbers, including numeric strings from the
// environment, as seconds.
var secondsToDuration mapstructure.DecodeHookFuncType = func(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	v := reflect.ValueOf(data)
	switch from.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Duration(v.Int()) * time.Second, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return time.Duration(v.Uint()) * time.Second, nil
	case reflect.Float32, reflect.Float64:
		return time.Duration(v.Float() * float64(time.Second)), nil
	case reflect.String:
		if f, err := strconv.ParseFloat(v.String(), 64); err == nil {
			return time.Duration(f * float64(time.Second)), nil
		}
	}
	return data, nil
}

// envKey converts SOAPX_UPPER_CASE to upper.case for koanf.
func envKey(key, value string) (string, any) {
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"transport.timeout.negotiation": "0s",
		"transport.timeout.read":        "0s",
		"transport.maxattempts":         1,
		"transport.tls.ignoreverify":    false,

		"log.level":  "info",
		"log.pretty": false,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

// Exists reports whether key was set by any source, defaults included.
func (c *Config) Exists(key string) bool {
	return c.k != nil && c.k.Exists(key)
}

// TransportConfig builds the live transport configuration.
func (c *Config) TransportConfig() (*transport.Config, error) {
	t := c.Transport
	opts := []transport.Option{
		transport.WithNegotiationTimeout(t.Timeout.Negotiation),
		transport.WithReadTimeout(t.Timeout.Read),
		transport.WithMaxAttempts(t.MaxAttempts),
		transport.WithHeaders(t.Headers),
		transport.WithIgnoreCertVerify(t.TLS.IgnoreVerify),
	}
	if t.Auth.Login != "" {
		if t.Auth.Password != nil {
			opts = append(opts, transport.WithBasicAuth(t.Auth.Login, *t.Auth.Password))
		} else {
			opts = append(opts, transport.WithLogin(t.Auth.Login))
		}
	}
	return transport.NewConfig(opts...)
}

// Logger builds a logger writing to w. Pretty output uses the zerolog
// console writer.
func (c *Config) Logger(w io.Writer) *logger.ZeroLogger {
	if c.Log.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return logger.NewWithWriter(w, c.Log.Level)
}
