package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config carries every deployment parameter the server reads from the
// environment. A .env file is loaded first when present.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`
	Prod bool   `env:"PROD"`

	// Public base URL, used to rebuild the webhook URL for Twilio
	// signature validation.
	AppURL string `env:"APP_URL"`

	SessionKey string `env:"KEY"`
	JWTSecret  string `env:"JWT_SECRET"`
	CronSecret string `env:"CRON_SECRET"`

	AdminEmail        string   `env:"ADMIN_EMAIL"`
	AdminPasswordHash string   `env:"ADMIN_PASSWORD_HASH"`
	AdminPhoneNumbers []string `env:"ADMIN_PHONE_NUMBERS" envSeparator:","`

	TwilioAccountSID  string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken   string `env:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber string `env:"TWILIO_PHONE_NUMBER"`

	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `env:"ANTHROPIC_MODEL" envDefault:"claude-sonnet-4-5"`

	GoogleCalendarID    string `env:"GOOGLE_CALENDAR_ID"`
	GoogleCalendarToken string `env:"GOOGLE_CALENDAR_TOKEN"`

	RedisURL string `env:"REDIS_URL" envDefault:"localhost:6379"`

	MigratePostgres bool `env:"MIGRATE_POSTGRES"`
}

// Load reads .env (best effort) and parses the environment into a Config.
func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
