package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected  *Config
		name      string
		args      []string
		expectErr bool
	}{
		{
			name: "all short flags",
			args: []string{"receivables", "monthly",
				"-a", "http://api/", "-t", "http://idp/token", "-u", "user", "-m", "1,2",
				"-D", "sqlite", "-d", "file:x.db", "-w", "3", "-r", "4.5", "-b", "bucket", "-l", "debug",
			},
			expected: &Config{
				APIBaseURL:     "http://api/",
				TokenURL:       "http://idp/token",
				APIUsername:    "user",
				CompanyNumbers: []string{"1", "2"},
				DatabaseDriver: "sqlite",
				DatabaseDSN:    "file:x.db",
				MaxConcurrency: 3,
				RateLimit:      4.5,
				S3Bucket:       "bucket",
				LogLevel:       "debug",
			},
		},
		{
			name:      "bad int",
			args:      []string{"-w", "lots"},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			err := parseFlags(config, tt.args)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}
