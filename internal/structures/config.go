package structures

import "time"

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type RelayConfig struct {
	Sources        []string `yaml:"sources" validate:"required"`
	Destinations   []string `yaml:"destinations" validate:"required"`
	Keywords       []string `yaml:"keywords" validate:"required"`
	CaseSensitive  bool     `yaml:"caseSensitive"`
	IgnoreMedia    bool     `yaml:"ignoreMedia"`
	IgnoreForwards bool     `yaml:"ignoreForwards"`
	IgnoreBots     bool     `yaml:"ignoreBots"`
}

type DispatchConfig struct {
	ForwardDelay     time.Duration `yaml:"forwardDelay"`
	MaxRateLimitWait time.Duration `yaml:"maxRateLimitWait"`
	CallTimeout      time.Duration `yaml:"callTimeout"`
}

type StoreConfig struct {
	FingerprintCapacity int `yaml:"fingerprintCapacity"`
	FingerprintTrimTo   int `yaml:"fingerprintTrimTo"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type Persistence struct {
	Driver         string        `yaml:"driver" validate:"required|in:file,sqlite,redis"`
	Dir            string        `yaml:"dir"`
	SQLitePath     string        `yaml:"sqlitePath"`
	Redis          RedisConfig   `yaml:"redis"`
	SaveInterval   time.Duration `yaml:"saveInterval" validate:"required|min:1"`
	SaveOnMutation bool          `yaml:"saveOnMutation"`
}

type TransportConfig struct {
	BaseURL   string        `yaml:"baseURL" validate:"required"`
	Token     string        `yaml:"token"`
	Timeout   time.Duration `yaml:"timeout"`
	QueueSize int           `yaml:"queueSize"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"` // MB
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName     string
	Debug       bool
	Path        string
	Relay       RelayConfig     `yaml:"relay"`
	Dispatch    DispatchConfig  `yaml:"dispatch"`
	Store       StoreConfig     `yaml:"store"`
	Persistence Persistence     `yaml:"persistence"`
	Transport   TransportConfig `yaml:"transport"`
	WebServer   Server          `yaml:"webServer"`
	Logger      LoggerConfig    `yaml:"logger"`
	Cache       CacheConfig     `yaml:"cache"`
	Metrics     MetricsConfig   `yaml:"metrics"`
}
