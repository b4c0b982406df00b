package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/xela07ax/spaceai-agent-portal/internal/connectors"
)

// validate: синглтон валидатора, создание на каждый вызов дорогое.
var validate = validator.New()

// Config: корневая структура конфигурации портала.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// GRPCConfig: health-сервис для оркестратора. Пустой addr отключает.
type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

// AdminConfig: upstream admin-сервис и защита вызовов к нему.
type AdminConfig struct {
	BaseURL        string            `mapstructure:"base_url" validate:"required,url"`
	Routes         connectors.Routes `mapstructure:"routes"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout" validate:"gt=0"`
	RateLimit      float64           `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst      int               `mapstructure:"rate_burst" validate:"gte=1"`

	// Настройки Circuit Breaker на эндпоинт
	CBMaxRequests      uint32        `mapstructure:"cb_max_requests"`
	CBInterval         time.Duration `mapstructure:"cb_interval"`
	CBTimeout          time.Duration `mapstructure:"cb_timeout"`
	CBFailureThreshold uint32        `mapstructure:"cb_failure_threshold"`
}

// DatabaseConfig описывает подключение к PostgreSQL. Пустой URL отключает журнал.
type DatabaseConfig struct {
	URL         string `mapstructure:"url"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// RedisConfig: Pub/Sub сигналов перезагрузки. Пустой addr отключает слушателя.
type RedisConfig struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	ReloadChannel string `mapstructure:"reload_channel"`
}

// AuthConfig содержит публичный RSA ключ identity-провайдера и ожидаемые iss/aud.
type AuthConfig struct {
	PublicKeyPath string        `mapstructure:"public_key_path"`
	Issuer        string        `mapstructure:"issuer"`
	Audience      string        `mapstructure:"audience"`
	Leeway        time.Duration `mapstructure:"leeway" validate:"gte=0"`
	PublicKey     []byte
}

type AuditConfig struct {
	BatchSize     int           `mapstructure:"batch_size" validate:"gte=1"`
	FlushInterval time.Duration `mapstructure:"flush_interval" validate:"gt=0"`
	FlushAttempts uint          `mapstructure:"flush_attempts" validate:"gte=1"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// ADMIN_BASE_URL=... перекроет admin.base_url
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет, работаем на ENV и дефолтах
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// PEM-ключ из ENV (Docker/K8s) или из файла
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 0) // SSE держит соединение открытым
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("grpc.addr", "")

	v.SetDefault("admin.base_url", "http://localhost:8090")
	routes := connectors.DefaultRoutes()
	v.SetDefault("admin.routes.direct_agents", routes.DirectAgents)
	v.SetDefault("admin.routes.direct_agents_fallback", routes.DirectAgentsFallback)
	v.SetDefault("admin.routes.group_assignments", routes.GroupAssignments)
	v.SetDefault("admin.routes.group_agents", routes.GroupAgents)
	v.SetDefault("admin.request_timeout", 5*time.Second)
	v.SetDefault("admin.rate_limit", 100.0)
	v.SetDefault("admin.rate_burst", 20)
	v.SetDefault("admin.cb_max_requests", 3)
	v.SetDefault("admin.cb_interval", 5*time.Second)
	v.SetDefault("admin.cb_timeout", 30*time.Second)
	v.SetDefault("admin.cb_failure_threshold", 5)

	v.SetDefault("database.url", "")
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.reload_channel", RedisChanEntitlementsReload)

	v.SetDefault("auth.public_key_path", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.leeway", 30*time.Second)

	v.SetDefault("audit.batch_size", 100)
	v.SetDefault("audit.flush_interval", 500*time.Millisecond)
	v.SetDefault("audit.flush_attempts", 3)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// loadKeyResource: сначала ENV, затем файл по пути из конфига
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
