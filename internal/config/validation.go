package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	if err := c.validateDatabase("source", &c.Source); err != nil {
		errors = append(errors, err...)
	}

	if len(c.Jobs) == 0 {
		errors = append(errors, ValidationError{
			Field:   "jobs",
			Message: "at least one job must be defined",
		})
	}
	for name, job := range c.Jobs {
		if err := c.validateJob(name, &job); err != nil {
			errors = append(errors, err...)
		}
	}

	if err := c.validateLogging(); err != nil {
		errors = append(errors, err...)
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateDatabase(prefix string, db *DatabaseConfig) ValidationErrors {
	var errors ValidationErrors

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".host",
			Message: "host is required",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".user",
			Message: "user is required",
		})
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".database",
			Message: "database name is required",
		})
	}

	validSSL := map[string]bool{"disable": true, "prefer": true, "require": true, "": true}
	if !validSSL[db.SSLMode] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".ssl_mode",
			Message: "ssl_mode must be 'disable', 'prefer', or 'require'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateJob(name string, job *JobConfig) ValidationErrors {
	var errors ValidationErrors
	prefix := fmt.Sprintf("jobs.%s", name)

	if job.ArchivePath == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".archive_path",
			Message: "archive_path is required",
		})
	}

	if len(job.FullTables) == 0 && len(job.Partial) == 0 {
		errors = append(errors, ValidationError{
			Field:   prefix,
			Message: "job must name at least one full table or one partial table",
		})
	}

	seen := make(map[string]bool)
	for _, t := range job.FullTables {
		if seen[t] {
			errors = append(errors, ValidationError{
				Field:   prefix + ".full_tables",
				Message: fmt.Sprintf("table %q listed more than once", t),
			})
		}
		seen[t] = true
	}

	partialSeen := make(map[string]bool)
	for i, p := range job.Partial {
		pfx := fmt.Sprintf("%s.partial[%d]", prefix, i)
		if p.Table == "" {
			errors = append(errors, ValidationError{Field: pfx + ".table", Message: "table is required"})
		}
		if p.SQL == "" {
			errors = append(errors, ValidationError{Field: pfx + ".sql", Message: "sql is required"})
		}
		if partialSeen[p.Table] {
			errors = append(errors, ValidationError{
				Field:   pfx + ".table",
				Message: fmt.Sprintf("table %q listed more than once in partial", p.Table),
			})
		}
		partialSeen[p.Table] = true
		if seen[p.Table] {
			errors = append(errors, ValidationError{
				Field:   pfx + ".table",
				Message: fmt.Sprintf("table %q is both a full table and a partial table", p.Table),
			})
		}
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
