package configuration

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"crosspost/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	Database    Database    `json:"database"`
	App         App         `json:"app"`
	RedisClient RedisClient `json:"redisClient"`
	Storage     Storage     `json:"storage"`
	OAuth       OAuth       `json:"oauth"`
	Publish     Publish     `json:"publish"`
	Events      Events      `json:"events"`
	Logger      Logger      `json:"logger"`
}

type App struct {
	Port        int    `json:"port"`
	SecretKey   string `json:"secretKey"`
	BaseURL     string `json:"baseUrl"`
	TLSEnabled  bool   `json:"tlsEnabled"`
	TLSCertFile string `json:"tlsCertFile"`
	TLSKeyFile  string `json:"tlsKeyFile"`
	// AllowedOrigins feeds the CORS middleware.
	AllowedOrigins []string `json:"allowedOrigins"`
}

type Database struct {
	// Vendor selects the primary store: "postgres" (default) or "mssql".
	Vendor string `json:"vendor"`
	Psql   Db     `json:"psql"`
	Mssql  Db     `json:"mssql"`
	// MySql backs the optional publish audit trail.
	MySql Db `json:"mysql"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	SSLMode  string `json:"sslMode"`
}

type RedisClient struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	Password     string `json:"password"`
	DatabaseName string `json:"databaseName"`
	Username     string `json:"username"`
}

// Storage points at the S3-compatible bucket holding uploaded videos.
type Storage struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	UseSSL    bool   `json:"useSSL"`
	// SignedURLTTLSeconds bounds the validity of the URL handed to vendors.
	SignedURLTTLSeconds int `json:"signedUrlTtlSeconds"`
	// MaxUploadBytes caps video uploads.
	MaxUploadBytes int64 `json:"maxUploadBytes"`
}

type OAuth struct {
	// StateStore is "database" (default) or "redis".
	StateStore      string      `json:"stateStore"`
	StateTTLSeconds int         `json:"stateTtlSeconds"`
	YouTube         OAuthClient `json:"youtube"`
	TikTok          OAuthClient `json:"tiktok"`
	Instagram       OAuthClient `json:"instagram"`
}

type OAuthClient struct {
	ClientID     string   `json:"clientId"`
	ClientSecret string   `json:"clientSecret"`
	Scopes       []string `json:"scopes"`
}

type Publish struct {
	// TimeoutSeconds bounds one platform's whole publish attempt.
	TimeoutSeconds int `json:"timeoutSeconds"`
	// VendorTimeoutSeconds bounds each vendor HTTP call.
	VendorTimeoutSeconds int `json:"vendorTimeoutSeconds"`
	// UploadTimeoutSeconds bounds byte transfers to vendors.
	UploadTimeoutSeconds         int     `json:"uploadTimeoutSeconds"`
	InstagramPollIntervalSeconds int     `json:"instagramPollIntervalSeconds"`
	InstagramPollAttempts        int     `json:"instagramPollAttempts"`
	RateLimitPerMinute           float64 `json:"rateLimitPerMinute"`
	RateLimitBurst               int     `json:"rateLimitBurst"`
}

// Events configures where post status events are forwarded besides SSE.
type Events struct {
	PubsubProjectID     string `json:"pubsubProjectId"`
	PubsubTopic         string `json:"pubsubTopic"`
	ServiceBusNamespace string `json:"serviceBusNamespace"`
	ServiceBusQueue     string `json:"serviceBusQueue"`
}

type Logger struct {
	Format string `json:"format"`
}

var C Config

func init() {
	Reload()
}

// Reload rebuilds C from the config file and the current environment, e.g.
// after LoadEnvFromFile.
func Reload() {
	C = Config{}
	LoadConfig()
	initDatabase(&C)
	initApp(&C)
	initStorage(&C)
	initOAuth(&C)
	initPublish(&C)
	initEvents(&C)
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initDatabase(C *Config) {
	C.Database.Vendor = strings.ToLower(getConfigValue(C.Database.Vendor, "DB_VENDOR", "postgres"))

	C.Database.Psql.Name = getConfigValue(C.Database.Psql.Name, "DB_NAME", "")
	C.Database.Psql.Host = getConfigValue(C.Database.Psql.Host, "DB_HOST", "localhost")
	C.Database.Psql.Port = getConfigValue(C.Database.Psql.Port, "DB_PORT", "5432")
	C.Database.Psql.User = getConfigValue(C.Database.Psql.User, "DB_USER", "postgres")
	C.Database.Psql.Password = getConfigValue(C.Database.Psql.Password, "DB_PASSWORD", "")
	C.Database.Psql.SSLMode = getConfigValue(C.Database.Psql.SSLMode, "DB_SSLMODE", "disable")

	// Optional MSSQL config via environment variables (for Azure SQL in production)
	C.Database.Mssql.Name = getConfigValue(C.Database.Mssql.Name, "MSSQL_DB_NAME", "")
	C.Database.Mssql.Host = getConfigValue(C.Database.Mssql.Host, "MSSQL_HOST", "localhost")
	C.Database.Mssql.Port = getConfigValue(C.Database.Mssql.Port, "MSSQL_PORT", "1433")
	C.Database.Mssql.User = getConfigValue(C.Database.Mssql.User, "MSSQL_USER", "sa")
	C.Database.Mssql.Password = getConfigValue(C.Database.Mssql.Password, "MSSQL_PASSWORD", "")

	// The audit store is only opened when a host is given.
	C.Database.MySql.Name = getConfigValue(C.Database.MySql.Name, "AUDIT_DB_NAME", "")
	C.Database.MySql.Host = getConfigValue(C.Database.MySql.Host, "AUDIT_DB_HOST", "")
	C.Database.MySql.Port = getConfigValue(C.Database.MySql.Port, "AUDIT_DB_PORT", "3306")
	C.Database.MySql.User = getConfigValue(C.Database.MySql.User, "AUDIT_DB_USER", "")
	C.Database.MySql.Password = getConfigValue(C.Database.MySql.Password, "AUDIT_DB_PASSWORD", "")

	logger.GetLogger().WithFields(map[string]interface{}{
		"vendor": C.Database.Vendor,
		"host":   C.Database.Psql.Host,
		"name":   C.Database.Psql.Name,
	}).Info("Database configuration")
}

func initApp(C *Config) {
	// Prefer SECRET_KEY from environment for JWT verification; overrides config file when provided
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	// Port resolution order (env overrides config): APP_PORT -> PORT -> config -> default 10001
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 10001
	}
	if v := os.Getenv("TLS_ENABLED"); v != "" {
		switch v {
		case "1", "true", "TRUE", "True":
			C.App.TLSEnabled = true
		case "0", "false", "FALSE", "False":
			C.App.TLSEnabled = false
		}
	}
	C.App.TLSCertFile = getConfigValue(C.App.TLSCertFile, "TLS_CERT_FILE", "")
	C.App.TLSKeyFile = getConfigValue(C.App.TLSKeyFile, "TLS_KEY_FILE", "")

	scheme := "http"
	if C.App.TLSEnabled {
		scheme = "https"
	}
	C.App.BaseURL = strings.TrimRight(getConfigValue(C.App.BaseURL, "APP_URL", fmt.Sprintf("%s://localhost:%d", scheme, C.App.Port)), "/")
	if C.App.TLSEnabled && !hasHTTPS(C.App.BaseURL) {
		C.App.BaseURL = toHTTPS(C.App.BaseURL)
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		C.App.AllowedOrigins = splitList(v)
	}
	if len(C.App.AllowedOrigins) == 0 {
		C.App.AllowedOrigins = []string{C.App.BaseURL}
	}
	if C.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; JWT authentication will fail. Provide SECRET_KEY via environment.")
	}
}

func initStorage(C *Config) {
	C.Storage.Endpoint = getConfigValue(C.Storage.Endpoint, "STORAGE_ENDPOINT", "localhost:9000")
	C.Storage.AccessKey = getConfigValue(C.Storage.AccessKey, "STORAGE_ACCESS_KEY", "")
	C.Storage.SecretKey = getConfigValue(C.Storage.SecretKey, "STORAGE_SECRET_KEY", "")
	C.Storage.Bucket = getConfigValue(C.Storage.Bucket, "STORAGE_BUCKET", "videos")
	C.Storage.Region = getConfigValue(C.Storage.Region, "STORAGE_REGION", "us-east-1")
	if v := os.Getenv("STORAGE_USE_SSL"); v != "" {
		C.Storage.UseSSL = v == "true" || v == "1"
	}
	if C.Storage.SignedURLTTLSeconds <= 0 {
		C.Storage.SignedURLTTLSeconds = getIntEnv("STORAGE_SIGNED_URL_TTL", 3600)
	}
	if C.Storage.MaxUploadBytes <= 0 {
		C.Storage.MaxUploadBytes = 500 << 20
	}
}

func initOAuth(C *Config) {
	C.OAuth.StateStore = strings.ToLower(getConfigValue(C.OAuth.StateStore, "OAUTH_STATE_STORE", "database"))
	if C.OAuth.StateTTLSeconds <= 0 {
		C.OAuth.StateTTLSeconds = 600
	}
	C.OAuth.YouTube.ClientID = getConfigValue(C.OAuth.YouTube.ClientID, "YOUTUBE_CLIENT_ID", "")
	C.OAuth.YouTube.ClientSecret = getConfigValue(C.OAuth.YouTube.ClientSecret, "YOUTUBE_CLIENT_SECRET", "")
	C.OAuth.TikTok.ClientID = getConfigValue(C.OAuth.TikTok.ClientID, "TIKTOK_CLIENT_KEY", "")
	C.OAuth.TikTok.ClientSecret = getConfigValue(C.OAuth.TikTok.ClientSecret, "TIKTOK_CLIENT_SECRET", "")
	C.OAuth.Instagram.ClientID = getConfigValue(C.OAuth.Instagram.ClientID, "INSTAGRAM_CLIENT_ID", "")
	C.OAuth.Instagram.ClientSecret = getConfigValue(C.OAuth.Instagram.ClientSecret, "INSTAGRAM_CLIENT_SECRET", "")

	C.RedisClient.Host = getConfigValue(C.RedisClient.Host, "REDIS_HOST", "localhost")
	C.RedisClient.Port = getConfigValue(C.RedisClient.Port, "REDIS_PORT", "6379")
	C.RedisClient.Username = getConfigValue(C.RedisClient.Username, "REDIS_USERNAME", "")
	C.RedisClient.Password = getConfigValue(C.RedisClient.Password, "REDIS_PASSWORD", "")
	C.RedisClient.DatabaseName = getConfigValue(C.RedisClient.DatabaseName, "REDIS_DB", "0")
}

func initPublish(C *Config) {
	if C.Publish.TimeoutSeconds <= 0 {
		C.Publish.TimeoutSeconds = 15 * 60
	}
	if C.Publish.VendorTimeoutSeconds <= 0 {
		C.Publish.VendorTimeoutSeconds = 30
	}
	if C.Publish.UploadTimeoutSeconds <= 0 {
		C.Publish.UploadTimeoutSeconds = 10 * 60
	}
	if C.Publish.InstagramPollIntervalSeconds <= 0 {
		C.Publish.InstagramPollIntervalSeconds = 10
	}
	if C.Publish.InstagramPollAttempts <= 0 {
		C.Publish.InstagramPollAttempts = 30
	}
	if C.Publish.RateLimitPerMinute <= 0 {
		C.Publish.RateLimitPerMinute = 30
	}
	if C.Publish.RateLimitBurst <= 0 {
		C.Publish.RateLimitBurst = 5
	}
}

func initEvents(C *Config) {
	C.Events.PubsubProjectID = getConfigValue(C.Events.PubsubProjectID, "PUBSUB_PROJECT_ID", "")
	C.Events.PubsubTopic = getConfigValue(C.Events.PubsubTopic, "PUBSUB_TOPIC", "post-status")
	C.Events.ServiceBusNamespace = getConfigValue(C.Events.ServiceBusNamespace, "SERVICEBUS_NAMESPACE", "")
	C.Events.ServiceBusQueue = getConfigValue(C.Events.ServiceBusQueue, "SERVICEBUS_QUEUE", "post-status")
}

// helpers to coerce local callback to https
func hasHTTPS(u string) bool { return strings.HasPrefix(u, "https://") }
func toHTTPS(u string) string {
	if strings.HasPrefix(u, "http://") {
		return "https://" + u[7:]
	}
	return u
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
