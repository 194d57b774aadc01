package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	ServerPort  string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	JWTSecret string

	ImageAPIKey string
	ImageAPIURL string
	ImageModel  string
	ImageStyle  string

	TextAPIKey string
	TextAPIURL string
	TextModel  string

	MailAPIKey   string
	MailAPIURL   string
	MailFrom     string
	MailFromName string

	// RedisAddr empty means the in-memory login attempt store is used.
	RedisAddr     string
	RedisPassword string
}

func Load() *Config {
	// Missing .env is fine; deployments set the environment directly.
	_ = godotenv.Load()

	return &Config{
		Environment: getEnv("APP_ENV", "development"),
		ServerPort:  getEnv("SERVER_PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "heroapp"),

		JWTSecret: getEnv("JWT_SECRET", "super-secret-key-change-me"),

		ImageAPIKey: getEnv("IMAGE_API_KEY", ""),
		ImageAPIURL: getEnv("IMAGE_API_URL", "https://cloud.leonardo.ai/api/rest/v1"),
		ImageModel:  getEnv("IMAGE_MODEL", "b24e16ff-06e3-43eb-8d33-4416c2d75876"),
		ImageStyle:  getEnv("IMAGE_STYLE", "COMIC_BOOK"),

		TextAPIKey: getEnv("TEXT_API_KEY", ""),
		TextAPIURL: getEnv("TEXT_API_URL", "https://api.openai.com/v1"),
		TextModel:  getEnv("TEXT_MODEL", "gpt-4o-mini"),

		MailAPIKey:   getEnv("MAIL_API_KEY", ""),
		MailAPIURL:   getEnv("MAIL_API_URL", "https://api.resend.com"),
		MailFrom:     getEnv("MAIL_FROM", "no-reply@heroapp.local"),
		MailFromName: getEnv("MAIL_FROM_NAME", "Hero App"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
