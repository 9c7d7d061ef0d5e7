package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	JWTSecret  string
	ServerPort string

	PerplexityAPIKey  string
	PerplexityBaseURL string
	PerplexityModel   string

	SendGridAPIKey string
	EmailFromName  string
	EmailFromAddr  string
	FrontendURL    string
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file, using environment variables")
	}

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "studypulse"),
		JWTSecret:  getEnv("JWT_SECRET", "secret"),
		ServerPort: getEnv("SERVER_PORT", "8080"),

		PerplexityAPIKey:  getEnv("PERPLEXITY_API_KEY", ""),
		PerplexityBaseURL: getEnv("PERPLEXITY_BASE_URL", "https://api.perplexity.ai"),
		PerplexityModel:   getEnv("PERPLEXITY_MODEL", "sonar"),

		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "StudyPulse"),
		EmailFromAddr:  getEnv("EMAIL_FROM_ADDR", "noreply@studypulse.app"),
		FrontendURL:    getEnv("FRONTEND_URL", "http://localhost:3000"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
