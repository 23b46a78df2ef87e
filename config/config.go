package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Email        EmailConfig        `mapstructure:"email"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Admin        AdminConfig        `mapstructure:"admin"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	PayPal       PayPalConfig       `mapstructure:"paypal"`
	Verification VerificationConfig `mapstructure:"verification"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type EmailConfig struct {
	Provider string    `mapstructure:"provider"` // smtp, ses
	SMTPHost string    `mapstructure:"smtp_host"`
	SMTPPort int       `mapstructure:"smtp_port"`
	Username string    `mapstructure:"username"`
	Password string    `mapstructure:"password"`
	From     string    `mapstructure:"from"`
	FromName string    `mapstructure:"from_name"`
	SES      SESConfig `mapstructure:"ses"`
}

type SESConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// AdminConfig 管理接口鉴权，JWTSecret 为空时不校验
type AdminConfig struct {
	JWTSecret   string `mapstructure:"jwt_secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type SubscriptionConfig struct {
	Plans           map[string]PlanConfig `mapstructure:"plans"`
	DefaultPaidPlan string                `mapstructure:"default_paid_plan"`
}

type PlanConfig struct {
	Name    string  `mapstructure:"name"`
	MaxPets int     `mapstructure:"max_pets"`
	Price   float64 `mapstructure:"price"`
}

type PayPalConfig struct {
	PlanIDs       map[string]string `mapstructure:"plan_ids"`        // PayPal plan id -> 内部套餐
	DedupTTLHours int               `mapstructure:"dedup_ttl_hours"` // 重复投递去重窗口
}

type VerificationConfig struct {
	CodeTTLMinutes       int `mapstructure:"code_ttl_minutes"`
	HashCost             int `mapstructure:"hash_cost"`
	SweepIntervalMinutes int `mapstructure:"sweep_interval_minutes"`
}

func Load(configPath string) (*Config, error) {
	// 优先读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	SetDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SetDefaults 默认套餐与 PayPal 映射
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("email.provider", "smtp")
	v.SetDefault("email.from_name", "MHM Pets")

	v.SetDefault("admin.expire_hours", 24*30)

	v.SetDefault("subscription.plans", map[string]interface{}{
		"free":    map[string]interface{}{"name": "Gratis", "max_pets": 1, "price": 0},
		"basic":   map[string]interface{}{"name": "Básico", "max_pets": 3, "price": 24},
		"pro":     map[string]interface{}{"name": "Pro", "max_pets": 5, "price": 36},
		"premium": map[string]interface{}{"name": "Premium", "max_pets": 10, "price": 48},
	})
	v.SetDefault("subscription.default_paid_plan", "basic")

	v.SetDefault("paypal.plan_ids", map[string]interface{}{
		"P-BASIC-PLAN-ID":   "basic",
		"P-PRO-PLAN-ID":     "pro",
		"P-PREMIUM-PLAN-ID": "premium",
	})
	v.SetDefault("paypal.dedup_ttl_hours", 72)

	v.SetDefault("verification.code_ttl_minutes", 10)
	v.SetDefault("verification.hash_cost", 10)
	v.SetDefault("verification.sweep_interval_minutes", 30)
}
