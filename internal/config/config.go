package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Database and port settings are required; the
// scheduler timings fall back to sane defaults so a minimal .env is enough
// to boot a dev instance.
type Config struct {
    Env                  string // application environment (e.g. "dev", "prod")
    Port                 string // HTTP port to listen on
    DBUser               string // database username
    DBPass               string // database password (optional)
    DBHost               string // database host address
    DBPort               string // database port number
    DBName               string // database name
    OrderTimeoutMin      int    // minutes a pending-payment order survives before the reaper cancels it
    ReapIntervalSec      int    // seconds between reaper sweeps
    ReconcileIntervalSec int    // seconds between ledger-to-database reconciliation passes
    WaitlistExpiryHours  int    // hours a paid waitlist entry stays eligible for fulfillment
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:                  must("APP_ENV"),      // environment (dev/test/prod)
        Port:                 must("APP_PORT"),     // port to bind the HTTP server
        DBUser:               must("DB_USER"),      // database user
        DBPass:               os.Getenv("DB_PASS"), // database password (empty allowed)
        DBHost:               must("DB_HOST"),      // database host
        DBPort:               must("DB_PORT"),      // database port
        DBName:               must("DB_NAME"),      // database name
        OrderTimeoutMin:      optInt("ORDER_TIMEOUT_MIN", 15),
        ReapIntervalSec:      optInt("REAP_INTERVAL_SEC", 60),
        ReconcileIntervalSec: optInt("RECONCILE_INTERVAL_SEC", 30),
        WaitlistExpiryHours:  optInt("WAITLIST_EXPIRY_HOURS", 24),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// optInt retrieves an optional integer environment variable, returning the
// default when unset.  An unparseable value is still fatal: silently
// falling back would hide a typo in production config.
func optInt(key string, def int) int {
    s, ok := os.LookupEnv(key)
    if !ok || s == "" {
        return def
    }
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
