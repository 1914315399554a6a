package config

import (
	"fmt"
	"slices"
	"strings"
)

// validValues maps keys to their allowed values.
var validValues = map[string][]string{
	"storage.backend":    {BackendFile, BackendSQLite, BackendPostgres},
	"storage.durability": {"strict", "lenient"},
	"delete.hierarchy":   {"detach", "keep"},
	"log.level":          {"debug", "info", "warn", "error"},
	"log.format":         {"text", "json"},
}

// Validate checks every enumerated key and the postgres DSN requirement.
// It returns one error describing every invalid value found.
func (c *Config) Validate() error {
	var errs []string

	for _, key := range Keys() {
		allowed, ok := validValues[key]
		if !ok {
			continue
		}
		val, _ := c.Get(key)
		if !slices.Contains(allowed, val) {
			errs = append(errs, fmt.Sprintf(
				"%s: invalid value %q (allowed: %s)",
				key, val, strings.Join(allowed, ", ")))
		}
	}

	if c.Storage.Backend == BackendPostgres && c.Storage.DSN == "" {
		errs = append(errs, "storage.dsn: required when storage.backend is postgres")
	}
	if c.Server.Addr == "" {
		errs = append(errs, "server.addr: must not be empty")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
}
