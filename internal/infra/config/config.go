package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App      AppSettings      `mapstructure:"app"`
	Store    StoreSettings    `mapstructure:"store"`
	Redis    RedisSettings    `mapstructure:"redis"`
	Memcache MemcacheSettings `mapstructure:"memcache"`
	Kafka    KafkaSettings    `mapstructure:"kafka"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// StoreSettings selects the persistence backend and the token store policy.
type StoreSettings struct {
	// Backend is "redis" or "memcache". Redis backends maintain indices as
	// native sorted sets; memcache backends fall back to conditional-write
	// list blobs.
	Backend         string        `mapstructure:"backend"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
	TrustEnabled    bool          `mapstructure:"trust_enabled"`
	DefaultTokenTTL time.Duration `mapstructure:"default_token_ttl"`
	CASMaxRetries   int           `mapstructure:"cas_max_retries"`
}

// RedisSettings configures the Redis connection.
type RedisSettings struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	DB           int           `mapstructure:"db"`
	Password     string        `mapstructure:"password"`
	TLSEnabled   bool          `mapstructure:"tls_enabled"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// MemcacheSettings configures the memcached connection.
type MemcacheSettings struct {
	Servers      []string      `mapstructure:"servers"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
}

// KafkaSettings configures the revocation event producer.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("TOKENVAULT")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"store.backend",
		"store.key_prefix",
		"store.trust_enabled",
		"store.default_token_ttl",
		"store.cas_max_retries",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.pool_size",
		"redis.min_idle_conns",
		"redis.dial_timeout",
		"redis.read_timeout",
		"redis.write_timeout",
		"memcache.servers",
		"memcache.timeout",
		"memcache.max_idle_conns",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "token-vault")
	v.SetDefault("app.env", "development")

	v.SetDefault("store.backend", "redis")
	v.SetDefault("store.key_prefix", "tokenvault")
	v.SetDefault("store.trust_enabled", false)
	v.SetDefault("store.default_token_ttl", "24h")
	v.SetDefault("store.cas_max_retries", 8)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("memcache.servers", []string{"localhost:11211"})
	v.SetDefault("memcache.timeout", "1s")
	v.SetDefault("memcache.max_idle_conns", 2)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "tokenvault")
	v.SetDefault("kafka.async", true)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "TOKENVAULT_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
