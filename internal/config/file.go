package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/stmtsync/internal/flagx"
	"github.com/dmitrijs2005/stmtsync/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration. Durations accept
// either "30s" style strings or integer nanoseconds. Zero values leave the
// current setting untouched.
type FileConfig struct {
	APIBaseURL        string   `json:"api_base_url" yaml:"api_base_url"`
	TokenURL          string   `json:"token_url" yaml:"token_url"`
	APIUsername       string   `json:"api_username" yaml:"api_username"`
	APIPassword       string   `json:"api_password" yaml:"api_password"`
	ClientAuthHeader  string   `json:"client_auth_header" yaml:"client_auth_header"`
	RefreshAuthHeader string   `json:"refresh_auth_header" yaml:"refresh_auth_header"`
	CompanyNumbers    []string `json:"company_numbers" yaml:"company_numbers"`

	DatabaseDriver string `json:"database_driver" yaml:"database_driver"`
	DatabaseDSN    string `json:"database_dsn" yaml:"database_dsn"`

	MaxConcurrency   int            `json:"max_concurrency" yaml:"max_concurrency"`
	RequestTimeout   timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	SummaryTimeout   timex.Duration `json:"summary_timeout" yaml:"summary_timeout"`
	ItemTimeout      timex.Duration `json:"item_timeout" yaml:"item_timeout"`
	RetryMax         int            `json:"retry_max" yaml:"retry_max"`
	BackoffInitial   timex.Duration `json:"backoff_initial" yaml:"backoff_initial"`
	BackoffMax       timex.Duration `json:"backoff_max" yaml:"backoff_max"`
	RateLimit        float64        `json:"rate_limit" yaml:"rate_limit"`
	RateBurst        int            `json:"rate_burst" yaml:"rate_burst"`
	TokenRefreshSkew timex.Duration `json:"token_refresh_skew" yaml:"token_refresh_skew"`
	MaxPages         int            `json:"max_pages" yaml:"max_pages"`

	PaymentsBatchSize     int `json:"payments_batch_size" yaml:"payments_batch_size"`
	SalesBatchSize        int `json:"sales_batch_size" yaml:"sales_batch_size"`
	InstallmentsBatchSize int `json:"installments_batch_size" yaml:"installments_batch_size"`
	ReceivablesBatchSize  int `json:"receivables_batch_size" yaml:"receivables_batch_size"`

	S3Bucket       string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region       string `json:"s3_region" yaml:"s3_region"`
	S3AccessKey    string `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey    string `json:"s3_secret_key" yaml:"s3_secret_key"`
	S3BaseEndpoint string `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`

	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`
}

// parseFile overlays the file named by -c/-config. Files ending in .yaml or
// .yml are decoded as YAML, anything else as JSON.
func parseFile(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)

	// nothing to load
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	fc.apply(config)
	return nil
}

func (fc *FileConfig) apply(c *Config) {
	setString(&c.APIBaseURL, fc.APIBaseURL)
	setString(&c.TokenURL, fc.TokenURL)
	setString(&c.APIUsername, fc.APIUsername)
	setString(&c.APIPassword, fc.APIPassword)
	setString(&c.ClientAuthHeader, fc.ClientAuthHeader)
	setString(&c.RefreshAuthHeader, fc.RefreshAuthHeader)
	if len(fc.CompanyNumbers) > 0 {
		c.CompanyNumbers = fc.CompanyNumbers
	}

	setString(&c.DatabaseDriver, fc.DatabaseDriver)
	setString(&c.DatabaseDSN, fc.DatabaseDSN)

	setInt(&c.MaxConcurrency, fc.MaxConcurrency)
	setDuration(&c.RequestTimeout, fc.RequestTimeout)
	setDuration(&c.SummaryTimeout, fc.SummaryTimeout)
	setDuration(&c.ItemTimeout, fc.ItemTimeout)
	setInt(&c.RetryMax, fc.RetryMax)
	setDuration(&c.BackoffInitial, fc.BackoffInitial)
	setDuration(&c.BackoffMax, fc.BackoffMax)
	if fc.RateLimit != 0 {
		c.RateLimit = fc.RateLimit
	}
	setInt(&c.RateBurst, fc.RateBurst)
	setDuration(&c.TokenRefreshSkew, fc.TokenRefreshSkew)
	setInt(&c.MaxPages, fc.MaxPages)

	setInt(&c.PaymentsBatchSize, fc.PaymentsBatchSize)
	setInt(&c.SalesBatchSize, fc.SalesBatchSize)
	setInt(&c.InstallmentsBatchSize, fc.InstallmentsBatchSize)
	setInt(&c.ReceivablesBatchSize, fc.ReceivablesBatchSize)

	setString(&c.S3Bucket, fc.S3Bucket)
	setString(&c.S3Region, fc.S3Region)
	setString(&c.S3AccessKey, fc.S3AccessKey)
	setString(&c.S3SecretKey, fc.S3SecretKey)
	setString(&c.S3BaseEndpoint, fc.S3BaseEndpoint)

	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)
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
