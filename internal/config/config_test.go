package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTZOffset(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"zulu", "Z", 0, false},
		{"empty", "", 0, false},
		{"positive", "+05:30", 5*time.Hour + 30*time.Minute, false},
		{"negative", "-08:00", -8 * time.Hour, false},
		{"malformed", "bogus", 0, true},
		{"missing-colon", "+0530", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseTZOffset(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(envCollation, "")
	t.Setenv(envTimezone, "")
	t.Setenv(envConvDB, "")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultCollat, cfg.DefaultCollation)
	assert.Equal(t, defaultCDB, cfg.ConformanceDB)
	assert.Equal(t, time.Duration(0), cfg.ImplicitTZOffset)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(envCollation, "http://example.com/collation")
	t.Setenv(envTimezone, "+02:00")
	t.Setenv(envConvDB, "/tmp/conv.db")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/collation", cfg.DefaultCollation)
	assert.Equal(t, "/tmp/conv.db", cfg.ConformanceDB)
	assert.Equal(t, 2*time.Hour, cfg.ImplicitTZOffset)
}
