// Package config предоставляет загрузку конфигурации из переменных окружения.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config содержит полную конфигурацию приложения.
type Config struct {
	App          AppConfig
	HTTP         HTTPConfig
	MySQL        MySQLConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	JWT          JWTConfig
	Jaeger       JaegerConfig
	Metrics      MetricsConfig
	Razorpay     RazorpayConfig
	Payout       PayoutConfig
	Notification NotificationConfig
	Webhook      WebhookConfig
}

// AppConfig содержит общие настройки приложения.
type AppConfig struct {
	Name      string `env:"APP_NAME" envDefault:"vendor-marketplace"`
	Env       string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// HTTPConfig содержит настройки HTTP сервера Booking Service.
type HTTPConfig struct {
	Host            string        `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"HTTP_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RateLimit       int           `env:"HTTP_RATE_LIMIT" envDefault:"100"`
	RateWindow      time.Duration `env:"HTTP_RATE_WINDOW" envDefault:"1m"`
}

// Addr возвращает адрес HTTP сервера.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MySQLConfig содержит настройки подключения к MySQL.
type MySQLConfig struct {
	Host            string        `env:"MYSQL_HOST" envDefault:"localhost"`
	Port            int           `env:"MYSQL_PORT" envDefault:"3306"`
	User            string        `env:"MYSQL_USER" envDefault:"root"`
	Password        string        `env:"MYSQL_PASSWORD" envDefault:"root"`
	Database        string        `env:"MYSQL_DATABASE" envDefault:"marketplace"`
	MaxOpenConns    int           `env:"MYSQL_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MYSQL_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"MYSQL_CONN_MAX_LIFETIME" envDefault:"5m"`
	AutoMigrate     bool          `env:"MYSQL_AUTO_MIGRATE" envDefault:"false"`
}

// DSN возвращает строку подключения к MySQL.
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// RedisConfig содержит настройки подключения к Redis.
type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Addr возвращает адрес Redis сервера.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig содержит настройки подключения к Kafka.
// Пустой список брокеров отключает доставку уведомлений.
type KafkaConfig struct {
	Brokers       []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	ConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"notifier"`
}

// JWTConfig содержит настройки проверки access токенов identity provider (RS256).
// Сервисы маркетплейса токены не выдают, только проверяют.
type JWTConfig struct {
	PublicKeyPath string `env:"JWT_PUBLIC_KEY_PATH"`
	Issuer        string `env:"JWT_ISSUER" envDefault:"marketplace-identity"`
}

// JaegerConfig содержит настройки трассировки Jaeger.
type JaegerConfig struct {
	Enabled  bool   `env:"JAEGER_ENABLED" envDefault:"true"`
	Host     string `env:"JAEGER_HOST" envDefault:"localhost"`
	OTLPPort int    `env:"JAEGER_OTLP_PORT" envDefault:"4317"`
}

// OTLPEndpoint возвращает OTLP gRPC endpoint для Jaeger.
func (c JaegerConfig) OTLPEndpoint() string {
	return fmt.Sprintf("%s:%d", c.Host, c.OTLPPort)
}

// MetricsConfig содержит настройки Prometheus метрик.
type MetricsConfig struct {
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`
	Port    int  `env:"METRICS_PORT" envDefault:"9090"`
}

// Addr возвращает адрес для Metrics HTTP сервера.
func (c MetricsConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// RazorpayConfig содержит настройки платёжного шлюза.
type RazorpayConfig struct {
	KeyID         string        `env:"RAZORPAY_KEY_ID"`
	KeySecret     string        `env:"RAZORPAY_KEY_SECRET"`
	WebhookSecret string        `env:"RAZORPAY_WEBHOOK_SECRET"`
	BaseURL       string        `env:"RAZORPAY_BASE_URL" envDefault:"https://api.razorpay.com/v1"`
	Timeout       time.Duration `env:"RAZORPAY_TIMEOUT" envDefault:"10s"`
}

// PayoutConfig - политика распределения суммы бронирования.
// Ставки задаются деплоем, в коде констант нет.
type PayoutConfig struct {
	FeeRate         decimal.Decimal `env:"PAYOUT_FEE_RATE" envDefault:"0.10"`
	AdvanceRate     decimal.Decimal `env:"PAYOUT_ADVANCE_RATE" envDefault:"0.30"`
	Currency        string          `env:"PAYOUT_CURRENCY" envDefault:"INR"`
	MinorUnitFactor int64           `env:"PAYOUT_MINOR_UNIT_FACTOR" envDefault:"100"`
	RoundingPlaces  int32           `env:"PAYOUT_ROUNDING_PLACES" envDefault:"0"`
}

// NotificationConfig содержит настройки провайдера WhatsApp/SMS.
type NotificationConfig struct {
	ProviderURL string        `env:"NOTIFY_PROVIDER_URL" envDefault:"http://localhost:8090/messages"`
	Token       string        `env:"NOTIFY_PROVIDER_TOKEN"`
	SenderID    string        `env:"NOTIFY_SENDER_ID" envDefault:"MRKTPL"`
	Channel     string        `env:"NOTIFY_CHANNEL" envDefault:"whatsapp"`
	Timeout     time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s"`
}

// WebhookConfig содержит настройки обработки вебхуков шлюза.
type WebhookConfig struct {
	DedupeTTL time.Duration `env:"WEBHOOK_DEDUPE_TTL" envDefault:"72h"`
}

// Load загружает конфигурацию из переменных окружения.
// Опционально загружает .env файл, если он существует.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse()
}

// LoadFromFile загружает конфигурацию из указанного .env файла.
func LoadFromFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("ошибка загрузки .env файла %s: %w", path, err)
	}
	return parse()
}

func parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}
	if err := cfg.Payout.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MaxRoundingPlaces - масштаб денежных колонок decimal(14,2).
const MaxRoundingPlaces = 2

// Validate проверяет, что ставки политики выплат лежат в [0, 1],
// а точность округления помещается в колонки и в минимальную единицу валюты.
func (c PayoutConfig) Validate() error {
	one := decimal.NewFromInt(1)
	if c.FeeRate.IsNegative() || c.FeeRate.GreaterThan(one) {
		return fmt.Errorf("PAYOUT_FEE_RATE вне диапазона [0, 1]: %s", c.FeeRate)
	}
	if c.AdvanceRate.IsNegative() || c.AdvanceRate.GreaterThan(one) {
		return fmt.Errorf("PAYOUT_ADVANCE_RATE вне диапазона [0, 1]: %s", c.AdvanceRate)
	}
	if c.MinorUnitFactor <= 0 {
		return fmt.Errorf("PAYOUT_MINOR_UNIT_FACTOR должен быть больше нуля")
	}
	if c.RoundingPlaces < 0 {
		return fmt.Errorf("PAYOUT_ROUNDING_PLACES не может быть отрицательным")
	}
	if c.RoundingPlaces > MaxRoundingPlaces {
		return fmt.Errorf("PAYOUT_ROUNDING_PLACES больше %d: %d", MaxRoundingPlaces, c.RoundingPlaces)
	}
	// 10^places должно укладываться в минимальную единицу, иначе доля не выражается в копейках.
	if !decimal.NewFromInt(c.MinorUnitFactor).Mod(decimal.New(1, c.RoundingPlaces)).IsZero() {
		return fmt.Errorf("PAYOUT_ROUNDING_PLACES=%d не согласуется с PAYOUT_MINOR_UNIT_FACTOR=%d",
			c.RoundingPlaces, c.MinorUnitFactor)
	}
	return nil
}

// ValidateBooking проверяет параметры, без которых Booking Service не запускается.
// Notifier читает ту же конфигурацию, но ключи шлюза и IdP ему не нужны.
func (c *Config) ValidateBooking() error {
	var missing []string
	if c.JWT.PublicKeyPath == "" {
		missing = append(missing, "JWT_PUBLIC_KEY_PATH")
	}
	if c.Razorpay.KeyID == "" {
		missing = append(missing, "RAZORPAY_KEY_ID")
	}
	if c.Razorpay.KeySecret == "" {
		missing = append(missing, "RAZORPAY_KEY_SECRET")
	}
	if c.Razorpay.WebhookSecret == "" {
		missing = append(missing, "RAZORPAY_WEBHOOK_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("не заданы обязательные переменные: %s", strings.Join(missing, ", "))
	}
	return nil
}

// IsDevelopment возвращает true, если приложение запущено в development режиме.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction возвращает true, если приложение запущено в production режиме.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
