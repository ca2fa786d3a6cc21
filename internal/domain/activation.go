package domain

// EnvironmentConfiguration maps environment variable names to values.
type EnvironmentConfiguration map[string]string

// ActivationMode distinguishes the two configuration entry paths.
type ActivationMode string

const (
	ModeClassic ActivationMode = "classic"
	ModeWizard  ActivationMode = "wizard"
)

// Field keys the orchestrator attaches errors under.
const (
	FieldDatabaseConnection = "database_connection"
	FieldPurchaseCode       = "purchase_code"
)

// FieldErrors maps a form field to its ordered error messages.
type FieldErrors map[string][]string

// Add appends msg to the messages recorded for field.
func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// Any reports whether at least one message was recorded.
func (fe FieldErrors) Any() bool {
	for _, msgs := range fe {
		if len(msgs) > 0 {
			return true
		}
	}
	return false
}

// First returns the first message for field or an empty string.
func (fe FieldErrors) First(field string) string {
	if msgs := fe[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// ActivationResult is the structured outcome of one activation call.
type ActivationResult struct {
	Mode         ActivationMode `json:"mode"`
	Message      string         `json:"message,omitempty"`
	Results      string         `json:"results,omitempty"`
	Next         string         `json:"next,omitempty"`
	DatabaseOK   bool           `json:"database_ok"`
	LicenseOK    bool           `json:"license_ok"`
	SiteKey      string         `json:"-"`
	ErrorField   string         `json:"error_field,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Errors       FieldErrors    `json:"errors,omitempty"`
}

// Fail records msg as the error for field.
func (r *ActivationResult) Fail(field, msg string) {
	r.ErrorField = field
	r.ErrorMessage = msg
	if r.Errors == nil {
		r.Errors = FieldErrors{}
	}
	r.Errors.Add(field, msg)
}

// OK reports whether activation passed every check.
func (r ActivationResult) OK() bool {
	return r.ErrorMessage == "" && !r.Errors.Any()
}
