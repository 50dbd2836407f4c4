package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"codemeet/pkg/circuitbreaker"
	"codemeet/pkg/retry"
	"codemeet/pkg/tracing"
	"codemeet/pkg/validation"

	"gopkg.in/yaml.v2"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Gateway struct {
		WriteWait         time.Duration `yaml:"write_wait"`
		PongWait          time.Duration `yaml:"pong_wait"`
		PingPeriod        time.Duration `yaml:"ping_period"`
		MaxMessageSize    int64         `yaml:"max_message_size"`
		SendQueueSize     int           `yaml:"send_queue_size"`
		DispatchQueueSize int           `yaml:"dispatch_queue_size"`
	} `yaml:"gateway"`

	WebRTC struct {
		ICEServers []ICEServer `yaml:"ice_servers"`
	} `yaml:"webrtc"`

	Rooms struct {
		Backend    string        `yaml:"backend"`
		TTL        time.Duration `yaml:"ttl"`         // idle expiry of rooms in Redis
		InstanceID string        `yaml:"instance_id"` // Redis room key space; random when empty
	} `yaml:"rooms"`

	Sessions struct {
		Backend string `yaml:"backend"`
		Writer  struct {
			Shards    int           `yaml:"shards"`
			QueueSize int           `yaml:"queue_size"`
			OpTimeout time.Duration `yaml:"op_timeout"`
		} `yaml:"writer"`
		Retry          retry.Config          `yaml:"retry"`
		CircuitBreaker circuitbreaker.Config `yaml:"circuit_breaker"`
	} `yaml:"sessions"`

	Redis struct {
		Address   string `yaml:"address"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		PoolSize  int    `yaml:"pool_size"`
		KeyPrefix string `yaml:"key_prefix"`
	} `yaml:"redis"`

	Mongo struct {
		URI            string        `yaml:"uri"`
		Database       string        `yaml:"database"`
		Collection     string        `yaml:"collection"`
		ConnectTimeout time.Duration `yaml:"connect_timeout"`
	} `yaml:"mongo"`

	Monitoring struct {
		PrometheusEnabled   bool          `yaml:"prometheus_enabled"`
		HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	} `yaml:"monitoring"`

	Tracing tracing.Config `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Auth struct {
		JWTSecret   string        `yaml:"jwt_secret"`
		TokenTTL    time.Duration `yaml:"token_ttl"`
		CookieName  string        `yaml:"cookie_name"`
		RequireREST bool          `yaml:"require_rest"` // guard /api/v1 with a token
	} `yaml:"auth"`

	CORS struct {
		AllowedOrigins   []string `yaml:"allowed_origins"`
		AllowCredentials bool     `yaml:"allow_credentials"`
	} `yaml:"cors"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`

		WebSocket struct {
			ConnectionsPerMinute int     `yaml:"connections_per_minute"`
			MessagesPerSecond    float64 `yaml:"messages_per_second"`
			Burst                int     `yaml:"burst"`
			MaxConcurrent        int     `yaml:"max_concurrent_connections"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`
}

// UsesRedis reports whether any store is backed by Redis.
func (c *Config) UsesRedis() bool {
	return c.Rooms.Backend == BackendRedis || c.Sessions.Backend == BackendRedis
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Gateway
	if c.Gateway.WriteWait <= 0 {
		return fmt.Errorf("gateway.write_wait must be > 0")
	}
	if c.Gateway.PongWait <= 0 {
		return fmt.Errorf("gateway.pong_wait must be > 0")
	}
	if c.Gateway.PingPeriod <= 0 || c.Gateway.PingPeriod >= c.Gateway.PongWait {
		return fmt.Errorf("gateway.ping_period must be > 0 and < gateway.pong_wait")
	}
	if c.Gateway.MaxMessageSize <= 0 {
		return fmt.Errorf("gateway.max_message_size must be > 0")
	}
	if c.Gateway.SendQueueSize <= 0 {
		return fmt.Errorf("gateway.send_queue_size must be > 0")
	}
	if c.Gateway.DispatchQueueSize <= 0 {
		return fmt.Errorf("gateway.dispatch_queue_size must be > 0")
	}

	// WebRTC
	for i, s := range c.WebRTC.ICEServers {
		if len(s.URLs) == 0 {
			return fmt.Errorf("webrtc.ice_servers[%d].urls must not be empty", i)
		}
	}

	// Stores
	switch c.Rooms.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("rooms.backend must be one of memory, redis")
	}
	switch c.Sessions.Backend {
	case BackendMemory, BackendRedis, BackendMongo:
	default:
		return fmt.Errorf("sessions.backend must be one of memory, redis, mongo")
	}
	if c.Sessions.Writer.Shards <= 0 {
		return fmt.Errorf("sessions.writer.shards must be > 0")
	}
	if c.Sessions.Writer.QueueSize <= 0 {
		return fmt.Errorf("sessions.writer.queue_size must be > 0")
	}
	if c.Sessions.Writer.OpTimeout <= 0 {
		return fmt.Errorf("sessions.writer.op_timeout must be > 0")
	}
	if c.Sessions.Retry.Enabled && c.Sessions.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("sessions.retry.max_attempts must be > 0 when retry is enabled")
	}
	if c.Sessions.CircuitBreaker.FailureThreshold <= 0 {
		return fmt.Errorf("sessions.circuit_breaker.failure_threshold must be > 0")
	}

	// Redis
	if c.UsesRedis() {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when a redis backend is selected")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when a redis backend is selected")
		}
	}

	// Mongo
	if c.Sessions.Backend == BackendMongo {
		if c.Mongo.URI == "" {
			return fmt.Errorf("mongo.uri must not be empty when sessions.backend=mongo")
		}
		if c.Mongo.Database == "" || c.Mongo.Collection == "" {
			return fmt.Errorf("mongo.database and mongo.collection must not be empty when sessions.backend=mongo")
		}
	}

	// Monitoring
	if c.Monitoring.HealthCheckInterval <= 0 {
		return fmt.Errorf("monitoring.health_check_interval must be > 0")
	}

	// Tracing
	if c.Tracing.Enabled && (c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1) {
		return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Auth
	if c.Auth.RequireREST && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty when auth.require_rest=true")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be > 0")
	}

	// CORS
	for _, origin := range c.CORS.AllowedOrigins {
		if err := validation.ValidateOrigin(origin); err != nil {
			return fmt.Errorf("cors.allowed_origins: %w", err)
		}
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.ConnectionsPerMinute <= 0 {
			return fmt.Errorf("rate_limiting.websocket.connections_per_minute must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MessagesPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.websocket.messages_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.Burst <= 0 {
			return fmt.Errorf("rate_limiting.websocket.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.websocket.max_concurrent_connections must be >= 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":5000"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Gateway.WriteWait = 10 * time.Second
	cfg.Gateway.PongWait = 60 * time.Second
	cfg.Gateway.PingPeriod = cfg.Gateway.PongWait * 9 / 10
	cfg.Gateway.MaxMessageSize = 64 * 1024
	cfg.Gateway.SendQueueSize = 256
	cfg.Gateway.DispatchQueueSize = 1024

	cfg.WebRTC.ICEServers = []ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
	}

	cfg.Rooms.Backend = BackendMemory
	cfg.Rooms.TTL = 24 * time.Hour

	cfg.Sessions.Backend = BackendMemory
	cfg.Sessions.Writer.Shards = 8
	cfg.Sessions.Writer.QueueSize = 256
	cfg.Sessions.Writer.OpTimeout = 5 * time.Second
	cfg.Sessions.Retry = retry.DefaultConfig()
	cfg.Sessions.CircuitBreaker = circuitbreaker.DefaultConfig()

	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10
	cfg.Redis.KeyPrefix = "codemeet:"

	cfg.Mongo.URI = "mongodb://localhost:27017"
	cfg.Mongo.Database = "codemeet"
	cfg.Mongo.Collection = "attempts"
	cfg.Mongo.ConnectTimeout = 10 * time.Second

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.HealthCheckInterval = 15 * time.Second

	cfg.Tracing = tracing.DefaultConfig()

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Auth.JWTSecret = ""
	cfg.Auth.TokenTTL = 24 * time.Hour
	cfg.Auth.CookieName = "token"
	cfg.Auth.RequireREST = false

	cfg.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.CORS.AllowCredentials = true

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 60
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 100
	cfg.RateLimiting.WebSocket.Burst = 200
	cfg.RateLimiting.WebSocket.MaxConcurrent = 0

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("CODEMEET_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	} else if port := os.Getenv("PORT"); port != "" {
		c.Server.Address = ":" + port
	}
	if level := os.Getenv("CODEMEET_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := firstEnv("CODEMEET_JWT_SECRET", "JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if uri := firstEnv("CODEMEET_MONGO_URI", "MONGO_URI"); uri != "" {
		c.Mongo.URI = uri
	}
	if addr := os.Getenv("CODEMEET_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
	if backend := os.Getenv("CODEMEET_ROOMS_BACKEND"); backend != "" {
		c.Rooms.Backend = backend
	}
	if instance := os.Getenv("CODEMEET_INSTANCE_ID"); instance != "" {
		c.Rooms.InstanceID = instance
	}
	if backend := os.Getenv("CODEMEET_SESSIONS_BACKEND"); backend != "" {
		c.Sessions.Backend = backend
	}
	if origins := os.Getenv("CODEMEET_CORS_ORIGINS"); origins != "" {
		c.CORS.AllowedOrigins = splitList(origins)
	} else if frontend := os.Getenv("FRONTEND_URL"); frontend != "" {
		c.CORS.AllowedOrigins = []string{strings.TrimRight(frontend, "/")}
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
