package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/aiwallpaper/internal/flagx"
	"github.com/dmitrijs2005/aiwallpaper/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file. Durations
// use timex.Duration so both "15m" and integer nanoseconds are accepted.
// Fields left out of the file keep their current value.
type JsonConfig struct {
	Environment string `json:"environment"`

	HTTPAddr    string `json:"http_addr"`
	DatabaseDSN string `json:"database_dsn"`

	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	CodeValidityDuration         timex.Duration `json:"code_validity_duration"`

	GoogleClientID string `json:"google_client_id"`
	GoogleJWKSURL  string `json:"google_jwks_url"`

	StorageBackend string `json:"storage_backend"`
	StorageDir     string `json:"storage_dir"`
	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`

	ReplicateAPIToken string         `json:"replicate_api_token"`
	ReplicateBaseURL  string         `json:"replicate_base_url"`
	ImageModel        string         `json:"image_model"`
	SuggestModel      string         `json:"suggest_model"`
	GenerationTimeout timex.Duration `json:"generation_timeout"`

	QueueBackend string `json:"queue_backend"`
	RedisAddr    string `json:"redis_addr"`
	Workers      int    `json:"workers"`

	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUser     string `json:"smtp_user"`
	SMTPPassword string `json:"smtp_password"`
	MailFrom     string `json:"mail_from"`
	MailFromName string `json:"mail_from_name"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	CORSOrigins            []string `json:"cors_origins"`
	RateLimitPerMinute     int      `json:"rate_limit_per_minute"`
	AuthRateLimitPerMinute int      `json:"auth_rate_limit_per_minute"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag into config. Without the flag nothing is loaded. An unreadable
// file or invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	c.applyTo(config)
}

func (c *JsonConfig) applyTo(config *Config) {
	setString(&config.Environment, c.Environment)
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.CodeValidityDuration, c.CodeValidityDuration)
	setString(&config.GoogleClientID, c.GoogleClientID)
	setString(&config.GoogleJWKSURL, c.GoogleJWKSURL)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.StorageDir, c.StorageDir)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.ReplicateAPIToken, c.ReplicateAPIToken)
	setString(&config.ReplicateBaseURL, c.ReplicateBaseURL)
	setString(&config.ImageModel, c.ImageModel)
	setString(&config.SuggestModel, c.SuggestModel)
	setDuration(&config.GenerationTimeout, c.GenerationTimeout)
	setString(&config.QueueBackend, c.QueueBackend)
	setString(&config.RedisAddr, c.RedisAddr)
	setInt(&config.Workers, c.Workers)
	setString(&config.SMTPHost, c.SMTPHost)
	setInt(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.MailFromName, c.MailFromName)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
	if len(c.CORSOrigins) > 0 {
		config.CORSOrigins = c.CORSOrigins
	}
	setInt(&config.RateLimitPerMinute, c.RateLimitPerMinute)
	setInt(&config.AuthRateLimitPerMinute, c.AuthRateLimitPerMinute)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
