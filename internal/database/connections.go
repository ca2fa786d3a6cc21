package database

import (
	"strings"

	"github.com/splax/installer/internal/domain"
)

// Connections maps a connection name to its base settings.
type Connections map[string]domain.ConnectionDescriptor

// DefaultConnections returns the base settings for the supported connection names.
func DefaultConnections(sslMode string) Connections {
	if strings.TrimSpace(sslMode) == "" {
		sslMode = "prefer"
	}
	return Connections{
		"sqlite": {
			Driver:   "sqlite",
			Database: "database/database.sqlite",
		},
		"mysql": {
			Driver:  "mysql",
			Host:    "127.0.0.1",
			Port:    "3306",
			Options: map[string]string{"charset": "utf8mb4", "collation": "utf8mb4_unicode_ci"},
		},
		"pgsql": {
			Driver:  "pgsql",
			Host:    "127.0.0.1",
			Port:    "5432",
			Options: map[string]string{"charset": "utf8", "schema": "public", "sslmode": sslMode},
		},
	}
}

// Form field names consumed when building a descriptor.
const (
	FieldConnection = "database_connection"
	FieldHostname   = "database_hostname"
	FieldPort       = "database_port"
	FieldName       = "database_name"
	FieldUsername   = "database_username"
	FieldPassword   = "database_password"
)

// DescriptorFromForm merges the submitted database fields over the base
// settings of the named connection. An unknown name starts from empty settings.
// Host, port, database and credentials always come from the form.
func (c Connections) DescriptorFromForm(form map[string]string) domain.ConnectionDescriptor {
	name := strings.TrimSpace(form[FieldConnection])
	desc := domain.ConnectionDescriptor{}
	if base, ok := c[name]; ok {
		desc.Options = cloneOptions(base.Options)
	}
	desc.Driver = name
	desc.Host = strings.TrimSpace(form[FieldHostname])
	desc.Port = strings.TrimSpace(form[FieldPort])
	desc.Database = strings.TrimSpace(form[FieldName])
	desc.Username = form[FieldUsername]
	desc.Password = form[FieldPassword]
	return desc
}

// DescriptorFromEnvironment builds a descriptor from saved DB_* variables.
func (c Connections) DescriptorFromEnvironment(env domain.EnvironmentConfiguration) domain.ConnectionDescriptor {
	return c.DescriptorFromForm(map[string]string{
		FieldConnection: env["DB_CONNECTION"],
		FieldHostname:   env["DB_HOST"],
		FieldPort:       env["DB_PORT"],
		FieldName:       env["DB_DATABASE"],
		FieldUsername:   env["DB_USERNAME"],
		FieldPassword:   env["DB_PASSWORD"],
	})
}

func cloneOptions(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
