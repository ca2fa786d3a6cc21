package domain

import (
	"strings"
	"time"
)

// NoticeKind names a notification emitted to subscribers.
type NoticeKind string

const (
	NoticeEnvironmentSaved      NoticeKind = "environment_saved"
	NoticeInstallationCompleted NoticeKind = "installation_completed"
)

const redactedValue = "********"

// Notice is a fire-and-forget signal about installer progress.
type Notice struct {
	ID         string            `json:"id"`
	Kind       NoticeKind        `json:"kind"`
	Mode       ActivationMode    `json:"mode,omitempty"`
	Input      map[string]string `json:"input,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Redacted returns a copy with secret-looking input values masked.
func (n Notice) Redacted() Notice {
	if len(n.Input) == 0 {
		return n
	}
	masked := make(map[string]string, len(n.Input))
	for k, v := range n.Input {
		if IsSecretKey(k) && v != "" {
			v = redactedValue
		}
		masked[k] = v
	}
	n.Input = masked
	return n
}

// IsSecretKey reports whether a field or variable name holds a credential.
func IsSecretKey(key string) bool {
	k := strings.ToLower(key)
	for _, marker := range []string{"password", "secret", "purchase_code", "app_key", "token", "env_config"} {
		if strings.Contains(k, marker) {
			return true
		}
	}
	return false
}
