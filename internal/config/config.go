// Package config implements CLI configuration and env loading for the
// xpath/xslt front ends (spec SPEC_FULL.md §4.9): CLI flags take precedence,
// falling back to .env-sourced environment variables for the handful of
// DynamicContext defaults the core doesn't hardcode (default collation,
// implicit timezone, conformance-db path), grounded on the teacher's
// cmd/morfx flag-building (buildConfigFromFlags) and its godotenv use in
// db/sqlite_integration_test.go.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config holds the resolved settings shared by cmd/xpath and cmd/xpconform.
type Config struct {
	DefaultCollation string
	ImplicitTZOffset time.Duration
	ConformanceDB    string
}

const (
	envCollation  = "XPATH_DEFAULT_COLLATION"
	envTimezone   = "XPATH_IMPLICIT_TIMEZONE"
	envConvDB     = "XPATH_CONFORMANCE_DB"
	defaultCDB    = "xpconform.db"
	defaultCollat = "http://www.w3.org/2005/xpath-functions/collation/codepoint"
)

// Load reads an already-parsed flag set, then fills any flag left at its
// zero value from a .env file (if present) and the process environment,
// matching the teacher's "flags first, environment as fallback" precedence.
func Load(fs *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load() // best effort: a missing .env is not an error

	cfg := &Config{
		DefaultCollation: envOr(envCollation, defaultCollat),
		ConformanceDB:    envOr(envConvDB, defaultCDB),
	}

	tzStr := envOr(envTimezone, "+00:00")
	offset, err := parseTZOffset(tzStr)
	if err != nil {
		return nil, fmt.Errorf("config: invalid %s %q: %w", envTimezone, tzStr, err)
	}
	cfg.ImplicitTZOffset = offset

	if fs != nil {
		if v, err := fs.GetString("collation"); err == nil && v != "" {
			cfg.DefaultCollation = v
		}
		if v, err := fs.GetString("conformance-db"); err == nil && v != "" {
			cfg.ConformanceDB = v
		}
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseTZOffset parses a "+HH:MM"/"-HH:MM"/"Z" offset into a duration, the
// same lexical shape spec §4.5 requires for date/time timezone offsets.
func parseTZOffset(s string) (time.Duration, error) {
	if s == "Z" || s == "" {
		return 0, nil
	}
	if len(s) != 6 || (s[0] != '+' && s[0] != '-') || s[3] != ':' {
		return 0, fmt.Errorf("expected +HH:MM, -HH:MM, or Z")
	}
	hh, err := strconv.Atoi(s[1:3])
	if err != nil {
		return 0, err
	}
	mm, err := strconv.Atoi(s[4:6])
	if err != nil {
		return 0, err
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if s[0] == '-' {
		d = -d
	}
	return d, nil
}
