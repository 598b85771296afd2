package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/stmtsync/internal/flagx"
)

// Environment variable names. The *_REDE names match the deployment's
// existing .env files.
const (
	EnvAPIBaseURL        = "API_BASE_URL_REDE"
	EnvTokenURL          = "TOKEN_URL_REDE"
	EnvAPIUsername       = "API_USERNAME_REDE"
	EnvAPIPassword       = "API_PASSWORD_REDE"
	EnvClientAuthHeader  = "API_AUTH_HEADER_REDE"
	EnvRefreshAuthHeader = "API_REFRESH_AUTH_HEADER_REDE"
	EnvCompanyNumbers    = "COMPANY_NUMBERS_REDE"
	EnvDatabaseDriver    = "DATABASE_DRIVER"
	EnvDatabaseDSN       = "DATABASE_DSN"
	EnvMaxConcurrency    = "MAX_CONCURRENCY"
	EnvRequestTimeout    = "REQUEST_TIMEOUT"
	EnvRateLimit         = "RATE_LIMIT"
	EnvS3Bucket          = "S3_BUCKET"
	EnvS3Region          = "S3_REGION"
	EnvS3AccessKey       = "S3_ACCESS_KEY"
	EnvS3SecretKey       = "S3_SECRET_KEY"
	EnvS3BaseEndpoint    = "S3_BASE_ENDPOINT"
	EnvLogLevel          = "LOG_LEVEL"
	EnvLogFormat         = "LOG_FORMAT"
)

func parseEnv(c *Config, getenv func(string) string) error {
	if getenv == nil {
		return nil
	}

	setString(&c.APIBaseURL, getenv(EnvAPIBaseURL))
	setString(&c.TokenURL, getenv(EnvTokenURL))
	setString(&c.APIUsername, getenv(EnvAPIUsername))
	setString(&c.APIPassword, getenv(EnvAPIPassword))
	setString(&c.ClientAuthHeader, getenv(EnvClientAuthHeader))
	setString(&c.RefreshAuthHeader, getenv(EnvRefreshAuthHeader))
	if v := getenv(EnvCompanyNumbers); v != "" {
		c.CompanyNumbers = flagx.SplitList(v)
	}
	setString(&c.DatabaseDriver, getenv(EnvDatabaseDriver))
	setString(&c.DatabaseDSN, getenv(EnvDatabaseDSN))

	if v := getenv(EnvMaxConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxConcurrency, err)
		}
		c.MaxConcurrency = n
	}
	if v := getenv(EnvRequestTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRequestTimeout, err)
		}
		c.RequestTimeout = d
	}
	if v := getenv(EnvRateLimit); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRateLimit, err)
		}
		c.RateLimit = f
	}

	setString(&c.S3Bucket, getenv(EnvS3Bucket))
	setString(&c.S3Region, getenv(EnvS3Region))
	setString(&c.S3AccessKey, getenv(EnvS3AccessKey))
	setString(&c.S3SecretKey, getenv(EnvS3SecretKey))
	setString(&c.S3BaseEndpoint, getenv(EnvS3BaseEndpoint))
	setString(&c.LogLevel, getenv(EnvLogLevel))
	setString(&c.LogFormat, getenv(EnvLogFormat))

	return nil
}
