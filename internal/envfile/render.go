package envfile

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/drone/envsubst"
)

// wizardTemplate lays out the env file produced by the wizard.
const wizardTemplate = `APP_NAME=${APP_NAME}
APP_ENV=${APP_ENV}
APP_KEY=${APP_KEY}
APP_DEBUG=${APP_DEBUG}
APP_LOG_LEVEL=${APP_LOG_LEVEL}
APP_URL=${APP_URL}

DB_CONNECTION=${DB_CONNECTION}
DB_HOST=${DB_HOST}
DB_PORT=${DB_PORT}
DB_DATABASE=${DB_DATABASE}
DB_USERNAME=${DB_USERNAME}
DB_PASSWORD=${DB_PASSWORD}

BROADCAST_DRIVER=${BROADCAST_DRIVER}
CACHE_DRIVER=${CACHE_DRIVER}
SESSION_DRIVER=${SESSION_DRIVER}
QUEUE_DRIVER=${QUEUE_DRIVER}

REDIS_HOST=${REDIS_HOST}
REDIS_PASSWORD=${REDIS_PASSWORD}
REDIS_PORT=${REDIS_PORT}

MAIL_DRIVER=${MAIL_DRIVER}
MAIL_HOST=${MAIL_HOST}
MAIL_PORT=${MAIL_PORT}
MAIL_USERNAME=${MAIL_USERNAME}
MAIL_PASSWORD=${MAIL_PASSWORD}
MAIL_ENCRYPTION=${MAIL_ENCRYPTION}

PURCHASE_CODE=${PURCHASE_CODE}
`

// formVariables maps wizard fields onto env variables.
var formVariables = map[string]string{
	"app_name":            "APP_NAME",
	"app_debug":           "APP_DEBUG",
	"app_log_level":       "APP_LOG_LEVEL",
	"app_url":             "APP_URL",
	"database_connection": "DB_CONNECTION",
	"database_hostname":   "DB_HOST",
	"database_port":       "DB_PORT",
	"database_name":       "DB_DATABASE",
	"database_username":   "DB_USERNAME",
	"database_password":   "DB_PASSWORD",
	"broadcast_driver":    "BROADCAST_DRIVER",
	"cache_driver":        "CACHE_DRIVER",
	"session_driver":      "SESSION_DRIVER",
	"queue_driver":        "QUEUE_DRIVER",
	"redis_hostname":      "REDIS_HOST",
	"redis_password":      "REDIS_PASSWORD",
	"redis_port":          "REDIS_PORT",
	"mail_driver":         "MAIL_DRIVER",
	"mail_host":           "MAIL_HOST",
	"mail_port":           "MAIL_PORT",
	"mail_username":       "MAIL_USERNAME",
	"mail_password":       "MAIL_PASSWORD",
	"mail_encryption":     "MAIL_ENCRYPTION",
	"purchase_code":       "PURCHASE_CODE",
}

// Render produces env file content for a wizard submission.
func Render(form map[string]string, appKey string) (string, error) {
	vars := map[string]string{"APP_KEY": appKey}
	for field, name := range formVariables {
		vars[name] = form[field]
	}
	vars["APP_ENV"] = form["environment"]
	if form["environment"] == "other" {
		vars["APP_ENV"] = form["environment_custom"]
	}
	out, err := envsubst.Eval(wizardTemplate, func(name string) string {
		return quote(vars[name])
	})
	if err != nil {
		return "", fmt.Errorf("render env template: %w", err)
	}
	return out, nil
}

// quote wraps values that dotenv parsers would otherwise split or expand.
func quote(value string) string {
	if value == "" || !strings.ContainsAny(value, " \t\r\n#\"'$\\=") {
		return value
	}
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, "\n", `\n`, "\r", `\r`).Replace(value)
	return `"` + escaped + `"`
}

func generateAppKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "base64:" + base64.StdEncoding.EncodeToString(buf), nil
}
