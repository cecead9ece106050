package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации моста.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig описывает подключение к PostgreSQL (аудит-трейл).
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (хранилище секретов и Pub/Sub).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig — секретный материал аутентификатора и операторской консоли.
// MasterSecret приходит только из ENV, в файл его не кладем.
type AuthConfig struct {
	MasterSecret string `mapstructure:"master_secret"`

	PublicKeyPath  string        `mapstructure:"public_key_path"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`

	// Единственный оператор консоли: логин и bcrypt-хэш пароля.
	OperatorUser string `mapstructure:"operator_user"`
	OperatorHash string `mapstructure:"operator_hash"`

	PublicKey  []byte
	PrivateKey []byte
}

// BridgeConfig содержит настройки пайплайна допуска.
type BridgeConfig struct {
	// Rate limiter: скорость пополнения и burst на каждого агента
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst"`

	// Дедупликация: дефолтное окно и потолок записей в кэше
	DedupWindow   time.Duration `mapstructure:"dedup_window"`
	DedupCapacity int           `mapstructure:"dedup_capacity"`

	// Диспетчер
	HandlerTimeout  time.Duration `mapstructure:"handler_timeout"`
	MaxPayloadBytes int           `mapstructure:"max_payload_bytes"`

	// Аудит
	AuditBufferSize    int           `mapstructure:"audit_buffer_size"`
	AuditFlushInterval time.Duration `mapstructure:"audit_flush_interval"`

	// Маршруты внешних обработчиков: директива → HTTP-эндпоинт агента
	Routes map[string]string `mapstructure:"routes"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// ENV перекрывает файл: BRIDGE_DEDUP_WINDOW=1m перекроет bridge.dedup_window
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Мастер-секрет обязателен: без него подписи недетерминированы между рестартами
	if cfg.Auth.MasterSecret == "" {
		cfg.Auth.MasterSecret = os.Getenv("AUTH_MASTER_SECRET")
	}
	if cfg.Auth.MasterSecret == "" {
		return nil, errors.New("auth.master_secret (AUTH_MASTER_SECRET) is required")
	}

	// Ключи RS256: сначала пробуем PEM прямо из ENV (Docker/K8s), иначе файл
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")
	cfg.Auth.PrivateKey = loadKeyResource(cfg.Auth.PrivateKeyPath, "AUTH_PRIVATE_KEY_DATA")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("logger.level", "info")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("bridge.rate_limit_per_second", 10.0)
	v.SetDefault("bridge.rate_limit_burst", 20)
	v.SetDefault("bridge.dedup_window", 5*time.Minute)
	v.SetDefault("bridge.dedup_capacity", 100000)
	v.SetDefault("bridge.handler_timeout", 10*time.Second)
	v.SetDefault("bridge.max_payload_bytes", 10<<20)
	v.SetDefault("bridge.audit_buffer_size", 10000)
	v.SetDefault("bridge.audit_flush_interval", 500*time.Millisecond)
}

// loadKeyResource — универсальный хелпер: ENV с данными ключа приоритетнее пути.
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
