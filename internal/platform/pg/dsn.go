package pg

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateDSN проверяет, что строка является URL подключения PostgreSQL
// с хостом. Ключевой формат "host=... user=..." не поддерживается:
// golang-migrate принимает только URL.
func ValidateDSN(dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("invalid DSN format: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("unsupported scheme: %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("host is required")
	}
	if strings.Trim(u.Path, "/") == "" {
		return fmt.Errorf("database is required")
	}
	return nil
}

// RedactDSN убирает пароль из DSN для логов.
func RedactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "[invalid dsn]"
	}
	return u.Redacted()
}
