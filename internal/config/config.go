package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings" // strings splits list-valued variables
	"time"    // time parses duration-valued variables
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for
// timeouts, ints for windows and costs.
type Config struct {
	Env            string        // application environment (e.g. "dev", "prod")
	Port           string        // HTTP port to listen on
	DBUser         string        // database username
	DBPass         string        // database password (optional)
	DBHost         string        // database host address
	DBPort         string        // database port number
	DBName         string        // database name
	JWTSecret      string        // secret used to verify JWTs issued by the auth service
	GoogleClientID string        // OAuth client id for the calendar token exchange
	GoogleSecret   string        // OAuth client secret for the calendar token exchange
	CalendarWindow int           // reconciliation look-ahead window in months
	RemoteTimeout  time.Duration // per-call timeout for calendar and token requests
	SyncInterval   time.Duration // period of the background reconcile loop (0 disables)
	FreeKeywords   []string      // event summary keywords that mark a calendar event as announcing availability (non-blocking)
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		GoogleClientID: must("GOOGLE_CLIENT_ID"),
		GoogleSecret:   must("GOOGLE_CLIENT_SECRET"),
		CalendarWindow: intOr("CALENDAR_WINDOW_MONTHS", 6),
		RemoteTimeout:  durOr("REMOTE_TIMEOUT", 8*time.Second),
		SyncInterval:   durOr("SYNC_INTERVAL", 0),
		FreeKeywords:   listOr("FREE_KEYWORDS", nil),
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

// intOr retrieves an optional integer variable, falling back to def when
// the variable is unset or malformed.
func intOr(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// durOr retrieves an optional duration variable ("8s", "5m"), falling
// back to def when unset.
func durOr(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, s)
	}
	return d
}

// listOr retrieves an optional comma-separated list variable.  Entries
// are trimmed; empty entries are dropped.  Returns def when unset.
func listOr(key string, def []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
