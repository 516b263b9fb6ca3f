package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "Test1 OK", args: []string{"cmd",
			"-d", "db", "-s", "access-secret", "-k", "refresh-secret",
			"-t", "15", "-r", "43200", "-o", "5", "-w", "60",
		}, expectPanic: false,
			expected: &Config{
				DatabaseDSN:                  "db",
				AccessTokenSecret:            "access-secret",
				RefreshTokenSecret:           "refresh-secret",
				AccessTokenValidityDuration:  15 * time.Minute,
				RefreshTokenValidityDuration: 30 * 24 * time.Hour,
				OtpValidityDuration:          5 * time.Minute,
				SweepInterval:                1 * time.Hour,
			}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)

			origArgs := os.Args
			t.Cleanup(func() { os.Args = origArgs })
			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
