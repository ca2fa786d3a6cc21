package domain

import (
	"fmt"
	"log/slog"
)

// ConnectionDescriptor holds everything needed to open a trial database connection.
// It is built per validation attempt and never persisted.
type ConnectionDescriptor struct {
	Driver   string
	Host     string
	Port     string
	Database string
	Username string
	Password string
	Options  map[string]string
}

// String renders the descriptor without its password.
func (d ConnectionDescriptor) String() string {
	return fmt.Sprintf("%s://%s@%s:%s/%s", d.Driver, d.Username, d.Host, d.Port, d.Database)
}

// LogValue keeps the password out of structured logs.
func (d ConnectionDescriptor) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("driver", d.Driver),
		slog.String("host", d.Host),
		slog.String("port", d.Port),
		slog.String("database", d.Database),
		slog.String("username", d.Username),
	)
}

// Option returns a driver option or fallback when unset.
func (d ConnectionDescriptor) Option(key, fallback string) string {
	if v, ok := d.Options[key]; ok && v != "" {
		return v
	}
	return fallback
}
