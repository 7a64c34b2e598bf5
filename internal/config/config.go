package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env              string        `mapstructure:"ENV"`
	Port             string        `mapstructure:"PORT"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	RedisURL         string        `mapstructure:"REDIS_URL"`
	JWTSecret        string        `mapstructure:"JWT_SECRET"`
	JWTRefreshSecret string        `mapstructure:"JWT_REFRESH_SECRET"`
	AccessTokenTTL   time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL  time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`
	OpenAIAPIKey     string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `mapstructure:"OPENAI_BASE_URL"`
	OpenAIModel      string        `mapstructure:"OPENAI_MODEL"`
	AIMode           string        `mapstructure:"AI_MODE"`
	AIDebounceDelay  time.Duration `mapstructure:"AI_DEBOUNCE_DELAY"`
	JobPollInterval  time.Duration `mapstructure:"JOB_POLL_INTERVAL"`
	RunWorker        bool          `mapstructure:"RUN_WORKER"`
	CronDaily        string        `mapstructure:"CRON_DAILY"`
	CronWeekly       string        `mapstructure:"CRON_WEEKLY"`
	WebhookTimeout   time.Duration `mapstructure:"WEBHOOK_TIMEOUT"`
	CORSAllowed      string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
}

const (
	AIModeOpenAI = "openai"
	AIModeStatic = "static"
)

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "5000")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("JWT_SECRET", "secret")
	v.SetDefault("JWT_REFRESH_SECRET", "refresh_secret")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h")
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_MODEL", "gpt-4-turbo-preview")
	v.SetDefault("AI_MODE", AIModeOpenAI)
	v.SetDefault("AI_DEBOUNCE_DELAY", "1s")
	v.SetDefault("JOB_POLL_INTERVAL", "500ms")
	v.SetDefault("RUN_WORKER", true)
	v.SetDefault("CRON_DAILY", "0 0 * * *")
	v.SetDefault("CRON_WEEKLY", "0 1 * * 1")
	v.SetDefault("WEBHOOK_TIMEOUT", "5s")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
