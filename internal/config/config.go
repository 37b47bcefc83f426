// Package config provides configuration structures and loading for xdump.
package config

// Config represents the complete application configuration.
type Config struct {
	Source  DatabaseConfig       `yaml:"source" mapstructure:"source"`
	Jobs    map[string]JobConfig `yaml:"jobs" mapstructure:"jobs"`
	Logging LoggingConfig        `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents a PostgreSQL database connection configuration.
type DatabaseConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	SSLMode            string `yaml:"ssl_mode" mapstructure:"ssl_mode"` // disable, prefer, require
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// PartialTable pairs a table name with the root selection SQL that seeds
// its partial dump. A slice (not a map) preserves the order the operator
// wrote the job in, which the archive's entry order depends on.
type PartialTable struct {
	Table string `yaml:"table" mapstructure:"table"`
	SQL   string `yaml:"sql" mapstructure:"sql"`
}

// JobConfig represents one named dump job: a destination archive and the
// full-table / partial-table selection that seeds the partial-dump engine.
type JobConfig struct {
	ArchivePath string         `yaml:"archive_path" mapstructure:"archive_path"`
	FullTables  []string       `yaml:"full_tables" mapstructure:"full_tables"`
	Partial     []PartialTable `yaml:"partial" mapstructure:"partial"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Source: DatabaseConfig{
			Host:               "127.0.0.1",
			Port:               5432,
			SSLMode:            "prefer",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// JobNotFoundError is returned when a named job is absent from configuration.
type JobNotFoundError struct {
	Name string
}

func (e *JobNotFoundError) Error() string {
	return "job " + e.Name + " not found in configuration"
}

// GetJob retrieves a specific job configuration by name.
func (c *Config) GetJob(name string) (*JobConfig, error) {
	job, exists := c.Jobs[name]
	if !exists {
		return nil, &JobNotFoundError{Name: name}
	}
	return &job, nil
}

// ListJobs returns all job names defined in the configuration.
func (c *Config) ListJobs() []string {
	jobs := make([]string, 0, len(c.Jobs))
	for name := range c.Jobs {
		jobs = append(jobs, name)
	}
	return jobs
}

// PartialSpecMap flattens a job's ordered partial-table list into a plain
// table -> SQL map, which does not keep the declared order. Callers that care
// about archive-entry order should iterate jc.Partial directly instead.
func (jc *JobConfig) PartialSpecMap() map[string]string {
	m := make(map[string]string, len(jc.Partial))
	for _, p := range jc.Partial {
		m[p.Table] = p.SQL
	}
	return m
}
