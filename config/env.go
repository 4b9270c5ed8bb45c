package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// expandString replaces ${VAR} and ${VAR:-default} references with values
// from the environment. A reference without a default whose variable is
// unset or empty is left untouched.
func expandString(s string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			b.WriteString(s)
			return b.String()
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			b.WriteString(s)
			return b.String()
		}
		end += start

		b.WriteString(s[:start])
		ref := s[start+2 : end]
		name, def, hasDefault := strings.Cut(ref, ":-")
		switch val := os.Getenv(name); {
		case val != "":
			b.WriteString(val)
		case hasDefault:
			b.WriteString(def)
		default:
			b.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
}

// applyEnvOverrides overlays well-known environment variables onto cfg.
// Provider credentials are handled by the providers package.
func applyEnvOverrides(cfg *Config) error {
	var errs []string
	fail := func(key string, err error) {
		errs = append(errs, fmt.Sprintf("%s: %v", key, err))
	}

	envString("PORT", &cfg.Server.Port)
	envString("BODY_LIMIT", &cfg.Server.BodyLimit)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if err := envDuration("CHAT_TIMEOUT", &cfg.Server.ChatTimeout); err != nil {
		fail("CHAT_TIMEOUT", err)
	}
	if err := envBool("RATE_LIMIT_ENABLED", &cfg.Server.RateLimit.Enabled); err != nil {
		fail("RATE_LIMIT_ENABLED", err)
	}
	if err := envInt("RATE_LIMIT_REQUESTS", &cfg.Server.RateLimit.Requests); err != nil {
		fail("RATE_LIMIT_REQUESTS", err)
	}
	if err := envDuration("RATE_LIMIT_WINDOW", &cfg.Server.RateLimit.Window); err != nil {
		fail("RATE_LIMIT_WINDOW", err)
	}

	envString("LOG_FORMAT", &cfg.Logging.Format)
	envString("LOG_LEVEL", &cfg.Logging.Level)

	envString("PRIMARY_LLM", &cfg.Gateway.Primary)
	cfg.Gateway.Primary = strings.ToLower(strings.TrimSpace(cfg.Gateway.Primary))
	if err := envInt("STREAM_BATCH_SIZE", &cfg.Gateway.BatchSize); err != nil {
		fail("STREAM_BATCH_SIZE", err)
	}

	envString("HISTORY_BACKEND", &cfg.History.Backend)
	envString("REDIS_URL", &cfg.History.Redis.URL)
	if err := envInt("HISTORY_MAX_MESSAGES", &cfg.History.MaxMessages); err != nil {
		fail("HISTORY_MAX_MESSAGES", err)
	}

	if err := envBool("AUDIT_ENABLED", &cfg.Audit.Enabled); err != nil {
		fail("AUDIT_ENABLED", err)
	}
	if err := envBool("AUDIT_LOG_BODIES", &cfg.Audit.LogBodies); err != nil {
		fail("AUDIT_LOG_BODIES", err)
	}
	if err := envInt("AUDIT_RETENTION_DAYS", &cfg.Audit.RetentionDays); err != nil {
		fail("AUDIT_RETENTION_DAYS", err)
	}

	envString("STORAGE_TYPE", &cfg.Storage.Type)
	envString("SQLITE_PATH", &cfg.Storage.SQLite.Path)
	envString("POSTGRES_URL", &cfg.Storage.PostgreSQL.URL)
	if err := envInt("POSTGRES_MAX_CONNS", &cfg.Storage.PostgreSQL.MaxConns); err != nil {
		fail("POSTGRES_MAX_CONNS", err)
	}
	envString("MONGODB_URL", &cfg.Storage.MongoDB.URL)
	envString("MONGODB_DATABASE", &cfg.Storage.MongoDB.Database)

	if err := envBool("METRICS_ENABLED", &cfg.Metrics.Enabled); err != nil {
		fail("METRICS_ENABLED", err)
	}
	envString("METRICS_ENDPOINT", &cfg.Metrics.Endpoint)

	envString("CATALOG_PATH", &cfg.Prompt.CatalogPath)
	envString("STORE_NAME", &cfg.Prompt.StoreName)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

// envDuration accepts integer seconds or a Go duration string.
func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
