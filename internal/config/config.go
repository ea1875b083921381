package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Broker    BrokerConfig
	Drone     DroneConfig
	Secrets   SecretsConfig
	Signing   SigningConfig
	Tracing   TracingConfig
}

type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type PostgresConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	DBName             string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	MaxLifetimeMinutes int
	LogLevel           string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// SchedulerConfig tunes the scheduler runtime: replica counts per
// scheduler type and the idle-delay between empty polls.
type SchedulerConfig struct {
	IdleDelay               time.Duration
	CronReplicas            int
	OneOffReplicas          int
	RetryReplicas           int
	TenantTokenReplicas     int
	RetentionReplicas       int
	WorkflowNoExecReplicas  int
	WorkflowPendingReplicas int
	WorkflowWaitedReplicas  int
	CronBacklogCap          int
	CronHorizon             time.Duration
	RetryBaseDelay          time.Duration
	RetentionGracePeriod    time.Duration
}

// BrokerConfig tunes the dispatch loop, execution recorder, and lease
// reaper.
type BrokerConfig struct {
	GRPCPort              int
	HomeRegionWindow      time.Duration
	SpilloverWindow       time.Duration
	AnonymousCandidateCap int
	DispatchChannelSize   int
	ReaperInterval        time.Duration
	ReaperSlack           time.Duration
	DefaultTimeoutMs      int32
	FallbackSigningSecret string
}

// DroneConfig tunes the drone process.
type DroneConfig struct {
	Region         string
	BrokerAddr     string
	CheckinEvery   time.Duration
	ResyncEvery    time.Duration
	HTTPTimeout    time.Duration
	LocalStorePath string
}

// SecretsConfig supplies the process's envelope-encryption master
// keys, hex-encoded, comma-separated as "id:hexkey" pairs.
type SecretsConfig struct {
	MasterKeys string
}

// SigningConfig holds SIGNING_FALLBACK_SECRET. No component reads it:
// the broker signs untenanted jobs with BrokerConfig.FallbackSigningSecret.
type SigningConfig struct {
	FallbackSecret string
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	SampleRate  float64
}

func LoadConfig() *Config {
	cfg, _ := Load()
	return cfg
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:            getEnvInt("SERVER_PORT", 8080),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Postgres: PostgresConfig{
			Host:               getEnv("POSTGRES_HOST", "localhost"),
			Port:               getEnv("POSTGRES_PORT", "5432"),
			User:               getEnv("POSTGRES_USER", "rocktick_user"),
			Password:           getEnv("POSTGRES_PASSWORD", "rocktick_password"),
			DBName:             getEnv("POSTGRES_DB", "rocktick_db"),
			SSLMode:            getEnv("POSTGRES_SSL_MODE", "disable"),
			MaxOpenConns:       getEnvInt("POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns:       getEnvInt("POSTGRES_MAX_IDLE_CONNS", 10),
			MaxLifetimeMinutes: getEnvInt("POSTGRES_MAX_LIFETIME_MINS", 30),
			LogLevel:           getEnv("POSTGRES_LOG_LEVEL", "warn"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 3),
		},
		Scheduler: SchedulerConfig{
			IdleDelay:               getDuration("SCHEDULER_IDLE_DELAY", 3*time.Second),
			CronReplicas:            getEnvInt("SCHEDULER_CRON_REPLICAS", 2),
			OneOffReplicas:          getEnvInt("SCHEDULER_ONEOFF_REPLICAS", 2),
			RetryReplicas:           getEnvInt("SCHEDULER_RETRY_REPLICAS", 2),
			TenantTokenReplicas:     getEnvInt("SCHEDULER_TENANT_TOKEN_REPLICAS", 1),
			RetentionReplicas:       getEnvInt("SCHEDULER_RETENTION_REPLICAS", 1),
			WorkflowNoExecReplicas:  getEnvInt("SCHEDULER_WORKFLOW_NOEXEC_REPLICAS", 2),
			WorkflowPendingReplicas: getEnvInt("SCHEDULER_WORKFLOW_PENDING_REPLICAS", 2),
			WorkflowWaitedReplicas:  getEnvInt("SCHEDULER_WORKFLOW_WAITED_REPLICAS", 2),
			CronBacklogCap:          getEnvInt("SCHEDULER_CRON_BACKLOG_CAP", 60),
			CronHorizon:             getDuration("SCHEDULER_CRON_HORIZON", 15*time.Minute),
			RetryBaseDelay:          getDuration("SCHEDULER_RETRY_BASE_DELAY", 60*time.Second),
			RetentionGracePeriod:    getDuration("SCHEDULER_RETENTION_GRACE", 5*time.Minute),
		},
		Broker: BrokerConfig{
			GRPCPort:              getEnvInt("BROKER_GRPC_PORT", 9090),
			HomeRegionWindow:      getDuration("BROKER_HOME_REGION_WINDOW", 3*time.Second),
			SpilloverWindow:       getDuration("BROKER_SPILLOVER_WINDOW", 5*time.Second),
			AnonymousCandidateCap: getEnvInt("BROKER_ANONYMOUS_CANDIDATE_CAP", 100),
			DispatchChannelSize:   getEnvInt("BROKER_DISPATCH_CHANNEL_SIZE", 32),
			ReaperInterval:        getDuration("BROKER_REAPER_INTERVAL", 15*time.Second),
			ReaperSlack:           getDuration("BROKER_REAPER_SLACK", 90*time.Second),
			DefaultTimeoutMs:      int32(getEnvInt("BROKER_DEFAULT_TIMEOUT_MS", 60000)),
			FallbackSigningSecret: getEnv("BROKER_FALLBACK_SIGNING_SECRET", ""),
		},
		Drone: DroneConfig{
			Region:         getEnv("DRONE_REGION", "local"),
			BrokerAddr:     getEnv("DRONE_BROKER_ADDR", "localhost:9090"),
			CheckinEvery:   getDuration("DRONE_CHECKIN_EVERY", 9*time.Second),
			ResyncEvery:    getDuration("DRONE_RESYNC_EVERY", 30*time.Second),
			HTTPTimeout:    getDuration("DRONE_HTTP_TIMEOUT", 60*time.Second),
			LocalStorePath: getEnv("DRONE_LOCAL_STORE_PATH", "./drone-store"),
		},
		Secrets: SecretsConfig{
			MasterKeys: getEnv("SECRETS_MASTER_KEYS", ""),
		},
		Signing: SigningConfig{
			FallbackSecret: getEnv("SIGNING_FALLBACK_SECRET", ""),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			ServiceName: getEnv("SERVICE_NAME", "rocktick"),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
			SampleRate:  getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
