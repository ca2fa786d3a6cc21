package validation

// WizardSchema declares the structural rules for the environment wizard form.
// Required text fields are expressed as minLength so every failure is attached
// to the offending field.
const WizardSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "app_name":            {"type": "string", "minLength": 1, "maxLength": 50},
    "environment":         {"type": "string", "minLength": 1, "maxLength": 50},
    "environment_custom":  {"type": "string", "maxLength": 50},
    "app_debug":           {"type": "string", "enum": ["true", "false"]},
    "app_log_level":       {"type": "string", "enum": ["debug", "info", "notice", "warning", "error", "critical", "alert", "emergency"]},
    "app_url":             {"type": "string", "pattern": "^https?://[^\\s]+$"},
    "database_connection": {"type": "string", "minLength": 1, "maxLength": 50},
    "database_hostname":   {"type": "string", "minLength": 1, "maxLength": 50},
    "database_port":       {"type": "string", "pattern": "^[0-9]+$"},
    "database_name":       {"type": "string", "minLength": 1, "maxLength": 50},
    "database_username":   {"type": "string", "minLength": 1, "maxLength": 50},
    "database_password":   {"type": "string", "maxLength": 50},
    "broadcast_driver":    {"type": "string", "minLength": 1, "maxLength": 50},
    "cache_driver":        {"type": "string", "minLength": 1, "maxLength": 50},
    "session_driver":      {"type": "string", "minLength": 1, "maxLength": 50},
    "queue_driver":        {"type": "string", "minLength": 1, "maxLength": 50},
    "redis_hostname":      {"type": "string", "minLength": 1, "maxLength": 50},
    "redis_password":      {"type": "string", "maxLength": 50},
    "redis_port":          {"type": "string", "pattern": "^[0-9]+$"},
    "mail_driver":         {"type": "string", "maxLength": 50},
    "mail_host":           {"type": "string", "maxLength": 50},
    "mail_port":           {"type": "string", "pattern": "^[0-9]*$"},
    "mail_username":       {"type": "string", "maxLength": 50},
    "mail_password":       {"type": "string", "maxLength": 50},
    "mail_encryption":     {"type": "string", "maxLength": 50},
    "purchase_code":       {"type": "string", "maxLength": 100}
  },
  "if": {"properties": {"environment": {"const": "other"}}},
  "then": {"properties": {"environment_custom": {"minLength": 1}}}
}`

// WizardMessages overrides the default message for a field.keyword pair.
var WizardMessages = map[string]string{
	"environment_custom.minLength": "Environment name is required when environment is other.",
	"app_url.pattern":              "The app url format is invalid.",
	"database_port.pattern":        "The database port must be a number.",
	"redis_port.pattern":           "The redis port must be a number.",
	"mail_port.pattern":            "The mail port must be a number.",
	"app_debug.enum":               "The app debug field must be true or false.",
	"app_log_level.enum":           "The selected app log level is invalid.",
}
