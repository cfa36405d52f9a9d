package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config holds all configuration values
type Config struct {
	// Server configuration
	Port        int    `json:"port"`
	Environment string `json:"environment"`
	EventName   string `json:"event_name"`
	AdminAPIKey string `json:"-"`

	// MongoDB configuration
	MongoURI      string `json:"mongo_uri"`
	MongoDatabase string `json:"mongo_database"`

	// Redis configuration
	RedisURI      string `json:"redis_uri"`
	RedisPassword string `json:"-"`
	RedisDB       int    `json:"redis_db"`
	// RedisClusterAddrs switches to a cluster client when set
	RedisClusterAddrs []string `json:"redis_cluster_addrs"`

	// Collection names
	RegistrationCollection        string `json:"mongo_registration_collection"`
	TeamGroupCollection           string `json:"mongo_team_group_collection"`
	PendingVerificationCollection string `json:"mongo_pending_verification_collection"`
	CounterCollection             string `json:"mongo_counter_collection"`

	// Verification configuration
	VerificationCodeTTL      time.Duration `json:"verification_code_ttl"`
	VerificationMaxAttempts  int           `json:"verification_max_attempts"`
	VerificationCommitLease  time.Duration `json:"verification_commit_lease"`
	VerificationCodeHashCost int           `json:"verification_code_hash_cost"`
	PendingSweepInterval     time.Duration `json:"pending_sweep_interval"`

	// Issuance rate limiting
	IssueRateLimit  int           `json:"issue_rate_limit"`
	IssueRateWindow time.Duration `json:"issue_rate_window"`

	// Verification throughput limit, a process-wide token bucket
	VerifyRateBurst  int           `json:"verify_rate_burst"`
	VerifyRateRefill time.Duration `json:"verify_rate_refill"`

	// Cache and maintenance
	GroupCacheTTL            time.Duration `json:"group_cache_ttl"`
	IndexMaintenanceInterval time.Duration `json:"index_maintenance_interval"`

	// Email delivery
	SMTPEnabled  bool   `json:"smtp_enabled"`
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUser     string `json:"smtp_user"`
	SMTPPassword string `json:"-"`
	SMTPFrom     string `json:"smtp_from"`

	// Notification queue
	NotificationWorkers   int           `json:"notification_workers"`
	NotificationQueueSize int           `json:"notification_queue_size"`
	NotificationTimeout   time.Duration `json:"notification_timeout"`

	// Tracing
	TracingEnabled     bool    `json:"tracing_enabled"`
	TracingEndpoint    string  `json:"tracing_endpoint"`
	TracingSampleRatio float64 `json:"tracing_sample_ratio"`
}

var (
	AppConfig *Config
)

// LoadConfig loads configuration from environment variables
func LoadConfig() error {
	port, err := strconv.Atoi(getEnvOrDefault("PORT", "8080"))
	if err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	if err != nil {
		return fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	codeTTL, err := time.ParseDuration(getEnvOrDefault("VERIFICATION_CODE_TTL", "10m"))
	if err != nil {
		return fmt.Errorf("invalid VERIFICATION_CODE_TTL: %w", err)
	}

	maxAttempts, err := strconv.Atoi(getEnvOrDefault("VERIFICATION_MAX_ATTEMPTS", "3"))
	if err != nil || maxAttempts < 1 {
		return fmt.Errorf("invalid VERIFICATION_MAX_ATTEMPTS: %q", os.Getenv("VERIFICATION_MAX_ATTEMPTS"))
	}

	commitLease, err := time.ParseDuration(getEnvOrDefault("VERIFICATION_COMMIT_LEASE", "30s"))
	if err != nil {
		return fmt.Errorf("invalid VERIFICATION_COMMIT_LEASE: %w", err)
	}

	hashCost, err := strconv.Atoi(getEnvOrDefault("VERIFICATION_CODE_HASH_COST", strconv.Itoa(bcrypt.DefaultCost)))
	if err != nil || hashCost < bcrypt.MinCost || hashCost > bcrypt.MaxCost {
		return fmt.Errorf("invalid VERIFICATION_CODE_HASH_COST: %q", os.Getenv("VERIFICATION_CODE_HASH_COST"))
	}

	sweepInterval, err := time.ParseDuration(getEnvOrDefault("PENDING_SWEEP_INTERVAL", "5m"))
	if err != nil {
		return fmt.Errorf("invalid PENDING_SWEEP_INTERVAL: %w", err)
	}

	issueRateLimit, err := strconv.Atoi(getEnvOrDefault("ISSUE_RATE_LIMIT", "5"))
	if err != nil {
		return fmt.Errorf("invalid ISSUE_RATE_LIMIT: %w", err)
	}

	issueRateWindow, err := time.ParseDuration(getEnvOrDefault("ISSUE_RATE_WINDOW", "15m"))
	if err != nil {
		return fmt.Errorf("invalid ISSUE_RATE_WINDOW: %w", err)
	}

	verifyRateBurst, err := strconv.Atoi(getEnvOrDefault("VERIFY_RATE_BURST", "50"))
	if err != nil {
		return fmt.Errorf("invalid VERIFY_RATE_BURST: %w", err)
	}

	verifyRateRefill, err := time.ParseDuration(getEnvOrDefault("VERIFY_RATE_REFILL", "20ms"))
	if err != nil || verifyRateRefill <= 0 {
		return fmt.Errorf("invalid VERIFY_RATE_REFILL: %q", os.Getenv("VERIFY_RATE_REFILL"))
	}

	groupCacheTTL, err := time.ParseDuration(getEnvOrDefault("GROUP_CACHE_TTL", "10m"))
	if err != nil {
		return fmt.Errorf("invalid GROUP_CACHE_TTL: %w", err)
	}

	indexMaintenanceInterval, err := time.ParseDuration(getEnvOrDefault("INDEX_MAINTENANCE_INTERVAL", "1h"))
	if err != nil {
		return fmt.Errorf("invalid INDEX_MAINTENANCE_INTERVAL: %w", err)
	}

	smtpEnabled, err := strconv.ParseBool(getEnvOrDefault("SMTP_ENABLED", "false"))
	if err != nil {
		return fmt.Errorf("invalid SMTP_ENABLED: %w", err)
	}

	smtpPort, err := strconv.Atoi(getEnvOrDefault("SMTP_PORT", "587"))
	if err != nil {
		return fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	notificationWorkers, err := strconv.Atoi(getEnvOrDefault("NOTIFICATION_WORKERS", "4"))
	if err != nil {
		return fmt.Errorf("invalid NOTIFICATION_WORKERS: %w", err)
	}

	notificationQueueSize, err := strconv.Atoi(getEnvOrDefault("NOTIFICATION_QUEUE_SIZE", "100"))
	if err != nil {
		return fmt.Errorf("invalid NOTIFICATION_QUEUE_SIZE: %w", err)
	}

	notificationTimeout, err := time.ParseDuration(getEnvOrDefault("NOTIFICATION_TIMEOUT", "15s"))
	if err != nil {
		return fmt.Errorf("invalid NOTIFICATION_TIMEOUT: %w", err)
	}

	tracingEnabled, err := strconv.ParseBool(getEnvOrDefault("TRACING_ENABLED", "false"))
	if err != nil {
		return fmt.Errorf("invalid TRACING_ENABLED: %w", err)
	}

	sampleRatio, err := strconv.ParseFloat(getEnvOrDefault("TRACING_SAMPLE_RATIO", "1"), 64)
	if err != nil || sampleRatio < 0 || sampleRatio > 1 {
		return fmt.Errorf("invalid TRACING_SAMPLE_RATIO: %q", os.Getenv("TRACING_SAMPLE_RATIO"))
	}

	smtpFrom := getEnvOrDefault("SMTP_FROM", "")
	if smtpEnabled && (os.Getenv("SMTP_HOST") == "" || smtpFrom == "") {
		return fmt.Errorf("SMTP_HOST and SMTP_FROM are required when SMTP_ENABLED is true")
	}

	AppConfig = &Config{
		// Server configuration
		Port:        port,
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),
		EventName:   getEnvOrDefault("EVENT_NAME", "Desafio Dunas"),
		AdminAPIKey: getEnvOrDefault("ADMIN_API_KEY", ""),

		// MongoDB configuration
		MongoURI:      getEnvOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnvOrDefault("MONGODB_DATABASE", "rally"),

		// Redis configuration
		RedisURI:      getEnvOrDefault("REDIS_URI", "localhost:6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,

		RedisClusterAddrs: splitList(getEnvOrDefault("REDIS_CLUSTER_ADDRS", "")),

		// Collection names
		RegistrationCollection:        getEnvOrDefault("MONGODB_REGISTRATION_COLLECTION", "registrations"),
		TeamGroupCollection:           getEnvOrDefault("MONGODB_TEAM_GROUP_COLLECTION", "team_groups"),
		PendingVerificationCollection: getEnvOrDefault("MONGODB_PENDING_VERIFICATION_COLLECTION", "pending_verifications"),
		CounterCollection:             getEnvOrDefault("MONGODB_COUNTER_COLLECTION", "counters"),

		// Verification configuration
		VerificationCodeTTL:      codeTTL,
		VerificationMaxAttempts:  maxAttempts,
		VerificationCommitLease:  commitLease,
		VerificationCodeHashCost: hashCost,
		PendingSweepInterval:     sweepInterval,

		IssueRateLimit:  issueRateLimit,
		IssueRateWindow: issueRateWindow,

		VerifyRateBurst:  verifyRateBurst,
		VerifyRateRefill: verifyRateRefill,

		GroupCacheTTL:            groupCacheTTL,
		IndexMaintenanceInterval: indexMaintenanceInterval,

		SMTPEnabled:  smtpEnabled,
		SMTPHost:     getEnvOrDefault("SMTP_HOST", ""),
		SMTPPort:     smtpPort,
		SMTPUser:     getEnvOrDefault("SMTP_USER", ""),
		SMTPPassword: getEnvOrDefault("SMTP_PASSWORD", ""),
		SMTPFrom:     smtpFrom,

		NotificationWorkers:   notificationWorkers,
		NotificationQueueSize: notificationQueueSize,
		NotificationTimeout:   notificationTimeout,

		TracingEnabled:     tracingEnabled,
		TracingEndpoint:    getEnvOrDefault("TRACING_ENDPOINT", "localhost:4317"),
		TracingSampleRatio: sampleRatio,
	}

	return nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// splitList parses a comma-separated list, dropping blank items
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
