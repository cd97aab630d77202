package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	DatabaseURL    string
	AdminJWTSecret string

	// Risk analysis
	FusionLexicalWeight     float64
	FusionStructuralWeight  float64
	FusionContextualWeight  float64
	FusionBehavioralWeight  float64
	MinAssessmentConfidence float64
	KnowledgeTopK           int

	// Escalation
	DefaultStepTimeout    time.Duration
	EscalationMaxParallel int

	// Secure channels
	ChannelTTL          time.Duration
	KeyRotationInterval time.Duration

	// Safety monitoring
	MonitorInterval        time.Duration
	AlertCooldown          time.Duration
	HighRiskFractionLimit  float64
	EscalationCapacity     int
	ResponseTimeSLA        time.Duration
	SafetyScoreFloor       float64

	// Redis (alert cooldown gate)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// AWS / email
	AWSRegion         string
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	StaffSMSNumber    string
	StaffEmail        string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		FusionLexicalWeight:     getEnvAsFloat("FUSION_LEXICAL_WEIGHT", 0.4),
		FusionStructuralWeight:  getEnvAsFloat("FUSION_STRUCTURAL_WEIGHT", 0.2),
		FusionContextualWeight:  getEnvAsFloat("FUSION_CONTEXTUAL_WEIGHT", 0.2),
		FusionBehavioralWeight:  getEnvAsFloat("FUSION_BEHAVIORAL_WEIGHT", 0.2),
		MinAssessmentConfidence: getEnvAsFloat("MIN_ASSESSMENT_CONFIDENCE", 0.3),
		KnowledgeTopK:           getEnvAsInt("KNOWLEDGE_TOP_K", 3),

		DefaultStepTimeout:    getEnvAsDuration("DEFAULT_STEP_TIMEOUT", 30*time.Second),
		EscalationMaxParallel: getEnvAsInt("ESCALATION_MAX_PARALLEL", 64),

		ChannelTTL:          getEnvAsDuration("CHANNEL_TTL", 24*time.Hour),
		KeyRotationInterval: getEnvAsDuration("KEY_ROTATION_INTERVAL", 12*time.Hour),

		MonitorInterval:       getEnvAsDuration("MONITOR_INTERVAL", time.Minute),
		AlertCooldown:         getEnvAsDuration("ALERT_COOLDOWN", 15*time.Minute),
		HighRiskFractionLimit: getEnvAsFloat("HIGH_RISK_FRACTION_LIMIT", 0.10),
		EscalationCapacity:    getEnvAsInt("ESCALATION_CAPACITY", 50),
		ResponseTimeSLA:       getEnvAsDuration("RESPONSE_TIME_SLA", 5*time.Minute),
		SafetyScoreFloor:      getEnvAsFloat("SAFETY_SCORE_FLOOR", 60),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Haven Crisis Team"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		StaffSMSNumber:    getEnv("STAFF_SMS_NUMBER", ""),
		StaffEmail:        getEnv("STAFF_EMAIL", ""),
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
