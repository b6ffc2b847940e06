package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config is the configuration of a SOAP client: the transport settings,
// the logger and the target service.
type Config struct {
	Transport TransportConfig `koanf:"transport" json:"transport" yaml:"transport"`
	Log       LogConfig       `koanf:"log" json:"log" yaml:"log"`
	Service   ServiceConfig   `koanf:"service" json:"service" yaml:"service"`

	// k holds the underlying Koanf instance for keys not mapped to the struct
	k *koanf.Koanf `json:"-" yaml:"-"`
}

// TransportConfig maps onto transport.Config.
type TransportConfig struct {
	Timeout     TimeoutConfig     `koanf:"timeout" json:"timeout" yaml:"timeout"`
	MaxAttempts int               `koanf:"maxattempts" json:"maxattempts" yaml:"maxattempts" validate:"min=1"`
	TLS         TLSConfig         `koanf:"tls" json:"tls" yaml:"tls"`
	Headers     map[string]string `koanf:"headers" json:"headers" yaml:"headers" validate:"dive,keys,required,endkeys"`
	Auth        AuthConfig        `koanf:"auth" json:"auth" yaml:"auth"`
}

// TimeoutConfig holds the per-attempt timeouts. Zero means no timeout.
type TimeoutConfig struct {
	// Negotiation bounds connection establishment, TLS handshake included.
	Negotiation time.Duration `koanf:"negotiation" json:"negotiation" yaml:"negotiation" validate:"gte=0"`
	// Read bounds the exchange once connected.
	Read time.Duration `koanf:"read" json:"read" yaml:"read" validate:"gte=0"`
}

type TLSConfig struct {
	IgnoreVerify bool `koanf:"ignoreverify" json:"ignoreverify" yaml:"ignoreverify"`
}

// AuthConfig enables HTTP Basic authentication when Login is set. A nil
// Password sends the login alone, an empty one sends "login:".
type AuthConfig struct {
	Login    string  `koanf:"login" json:"login" yaml:"login"`
	Password *string `koanf:"password" json:"-" yaml:"-"`
}

type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// ServiceConfig names the endpoint used by the command line client.
type ServiceConfig struct {
	URL    string `koanf:"url" json:"url" yaml:"url" validate:"omitempty,url"`
	Action string `koanf:"action" json:"action" yaml:"action"`
}
