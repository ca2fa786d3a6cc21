package validation

import (
	"strings"
	"testing"
)

func validForm() map[string]string {
	return map[string]string{
		"app_name":            "Shop",
		"environment":         "production",
		"app_debug":           "false",
		"app_log_level":       "debug",
		"app_url":             "https://shop.example.com",
		"database_connection": "mysql",
		"database_hostname":   "127.0.0.1",
		"database_port":       "3306",
		"database_name":       "shop",
		"database_username":   "root",
		"database_password":   "",
		"broadcast_driver":    "log",
		"cache_driver":        "file",
		"session_driver":      "file",
		"queue_driver":        "sync",
		"redis_hostname":      "127.0.0.1",
		"redis_password":      "null",
		"redis_port":          "6379",
	}
}

func newWizard(t *testing.T) *Validator {
	t.Helper()
	v, err := NewWizard()
	if err != nil {
		t.Fatalf("compile wizard rules: %v", err)
	}
	return v
}

func TestValidateAcceptsCompleteForm(t *testing.T) {
	v := newWizard(t)
	if errs := v.Validate(validForm()); errs.Any() {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateReportsMissingFields(t *testing.T) {
	v := newWizard(t)
	form := validForm()
	delete(form, "app_name")
	form["database_name"] = ""

	errs := v.Validate(form)
	if got := errs.First("app_name"); got != "The app name field is required." {
		t.Fatalf("unexpected app_name message %q", got)
	}
	if got := errs.First("database_name"); got == "" {
		t.Fatalf("expected database_name error, got %v", errs)
	}
	if errs.First("database_hostname") != "" {
		t.Fatalf("unexpected database_hostname error: %v", errs)
	}
}

func TestValidateCustomEnvironment(t *testing.T) {
	v := newWizard(t)
	form := validForm()
	form["environment"] = "other"

	errs := v.Validate(form)
	if got := errs.First("environment_custom"); got != WizardMessages["environment_custom.minLength"] {
		t.Fatalf("unexpected environment_custom message %q", got)
	}

	form["environment_custom"] = "staging"
	if errs := v.Validate(form); errs.Any() {
		t.Fatalf("expected custom environment to pass, got %v", errs)
	}
}

func TestValidateFormats(t *testing.T) {
	v := newWizard(t)
	cases := []struct {
		field string
		value string
		want  string
	}{
		{field: "app_url", value: "shop.example.com", want: WizardMessages["app_url.pattern"]},
		{field: "database_port", value: "33o6", want: WizardMessages["database_port.pattern"]},
		{field: "app_debug", value: "yes", want: WizardMessages["app_debug.enum"]},
		{field: "app_log_level", value: "verbose", want: WizardMessages["app_log_level.enum"]},
		{field: "app_name", value: strings.Repeat("x", 51), want: "The app name may not be greater than the allowed length."},
	}
	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			form := validForm()
			form[tc.field] = tc.value
			errs := v.Validate(form)
			if got := errs.First(tc.field); got != tc.want {
				t.Fatalf("expected %q, got %q (all: %v)", tc.want, got, errs)
			}
		})
	}
}

func TestNewRejectsBrokenSchema(t *testing.T) {
	if _, err := New("broken", `{"type": 12}`, nil); err == nil {
		t.Fatal("expected compile error")
	}
}
