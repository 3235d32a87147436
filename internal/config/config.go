package config

import (
	"os"
	"strconv"
	"time"
)

// Config is everything the client reads from the environment. Command-line
// flags override these values; flag parsing itself lives with the CLI.
type Config struct {
	AuthURL     string
	Username    string
	Password    string
	APIKey      string
	ProjectID   string
	ProjectName string
	Region      string

	ServiceType  string
	ServiceName  string
	EndpointType string
	// BypassURL skips catalog resolution entirely and is used verbatim.
	BypassURL string
	// Token is a pre-obtained bearer token, used together with BypassURL.
	Token string

	// Auth305Behavior decides what the Location header of an identity 305
	// means: "retry-identity" (retry the exchange against it) or
	// "use-as-endpoint" (treat it as the resolved service endpoint).
	Auth305Behavior string

	CABundle string
	Insecure bool
	Retries  int
	Timeout  time.Duration

	LogLevel   string
	Debug      bool
	JSONOutput bool

	// Object-store settings for published guest logs.
	LogS3Endpoint  string
	LogS3Region    string
	LogS3AccessKey string
	LogS3SecretKey string

	// Workflow-engine settings for backup schedules.
	TemporalAddress   string
	TemporalNamespace string
}

func Load() (*Config, error) {
	cfg := &Config{
		AuthURL:     getEnv("DBAAS_AUTH_URL", ""),
		Username:    getEnv("DBAAS_USERNAME", ""),
		Password:    getEnv("DBAAS_PASSWORD", ""),
		APIKey:      getEnv("DBAAS_APIKEY", ""),
		ProjectID:   getEnv("DBAAS_PROJECT_ID", ""),
		ProjectName: getEnv("DBAAS_PROJECT_NAME", ""),
		Region:      getEnv("DBAAS_REGION", ""),

		ServiceType:  getEnv("DBAAS_SERVICE_TYPE", "database"),
		ServiceName:  getEnv("DBAAS_SERVICE_NAME", ""),
		EndpointType: getEnv("DBAAS_ENDPOINT_TYPE", "public"),
		BypassURL:    getEnv("DBAAS_BYPASS_URL", ""),
		Token:        getEnv("DBAAS_TOKEN", ""),

		Auth305Behavior: getEnv("DBAAS_AUTH_305_BEHAVIOR", "retry-identity"),

		CABundle: getEnv("DBAAS_CA_BUNDLE", ""),
		Insecure: getEnvBool("DBAAS_INSECURE"),
		Retries:  getEnvInt("DBAAS_RETRIES", 3),
		Timeout:  time.Duration(getEnvInt("DBAAS_TIMEOUT", 30)) * time.Second,

		LogLevel:   getEnv("DBAAS_LOG_LEVEL", "info"),
		Debug:      getEnvBool("DBAAS_DEBUG"),
		JSONOutput: getEnvBool("DBAAS_JSON"),

		LogS3Endpoint:  getEnv("DBAAS_LOG_S3_ENDPOINT", ""),
		LogS3Region:    getEnv("DBAAS_LOG_S3_REGION", ""),
		LogS3AccessKey: getEnv("DBAAS_LOG_S3_ACCESS_KEY", ""),
		LogS3SecretKey: getEnv("DBAAS_LOG_S3_SECRET_KEY", ""),

		TemporalAddress:   getEnv("DBAAS_TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalNamespace: getEnv("DBAAS_TEMPORAL_NAMESPACE", "default"),
	}

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

// Secret returns the credential secret and its strategy: the password when
// set, otherwise the API key.
func (c *Config) Secret() (secret, strategy string) {
	if c.Password != "" {
		return c.Password, "password"
	}
	return c.APIKey, "apikey"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "True", "TRUE", "yes":
		return true
	}
	return false
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
