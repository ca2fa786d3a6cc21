package activation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/splax/installer/internal/domain"
	"github.com/splax/installer/internal/license"
)

// Messages attached to field errors raised by the orchestrator itself.
const (
	MessageDatabaseUnreachable = "Could not connect to the database."
	MessageInvalidPurchaseCode = "The purchase key is invalid."
)

// NextStage is the installer route a successful wizard submission advances to.
const NextStage = "/install/database"

// PurchaseCodeKey is the configuration key holding the classic-mode purchase code.
const PurchaseCodeKey = "PURCHASE_CODE"

// EnvironmentStore persists submitted configuration.
type EnvironmentStore interface {
	SaveClassic(raw string) string
	SaveWizard(form map[string]string) string
}

// FormValidator checks structural wizard fields.
type FormValidator interface {
	Validate(form map[string]string) domain.FieldErrors
}

// DescriptorBuilder turns wizard fields into a connection descriptor.
type DescriptorBuilder interface {
	DescriptorFromForm(form map[string]string) domain.ConnectionDescriptor
}

// Prober tests database reachability.
type Prober interface {
	Probe(ctx context.Context, desc domain.ConnectionDescriptor) bool
}

// Verifier checks a purchase code with the licensing service.
type Verifier interface {
	Verify(ctx context.Context, code domain.PurchaseCode, installationURL string) domain.LicenseVerification
}

// Notifier emits fire-and-forget notices.
type Notifier interface {
	Notify(ctx context.Context, notice domain.Notice)
}

// ConfigReader resolves trusted server-side configuration.
type ConfigReader interface {
	Lookup(key string) (string, bool)
}

// Service sequences persistence, connectivity and license checks.
type Service struct {
	env         EnvironmentStore
	validator   FormValidator
	descriptors DescriptorBuilder
	prober      Prober
	verifier    Verifier
	notifier    Notifier
	config      ConfigReader
	appURL      string
	logger      *slog.Logger
}

// New returns an activation service.
func New(env EnvironmentStore, validator FormValidator, descriptors DescriptorBuilder, prober Prober, verifier Verifier, notifier Notifier, config ConfigReader, appURL string, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{
		env:         env,
		validator:   validator,
		descriptors: descriptors,
		prober:      prober,
		verifier:    verifier,
		notifier:    notifier,
		config:      config,
		appURL:      strings.TrimSpace(appURL),
		logger:      logger,
	}
}

// ActivateClassic saves raw environment content and validates the configured purchase code.
// The environment saved notice is emitted on every call.
func (s Service) ActivateClassic(ctx context.Context, raw string) domain.ActivationResult {
	result := domain.ActivationResult{Mode: domain.ModeClassic}

	// Read before saving: the submitted text must not supply its own code.
	code, ok := s.config.Lookup(PurchaseCodeKey)
	if !ok {
		s.logger.Warn("purchase code not configured", "key", PurchaseCodeKey)
		code = ""
	}

	result.Message = s.env.SaveClassic(raw)

	s.notifier.Notify(ctx, domain.Notice{
		Kind:  domain.NoticeEnvironmentSaved,
		Mode:  domain.ModeClassic,
		Input: map[string]string{"env_config": raw},
	})

	s.checkLicense(ctx, &result, code)
	if result.ErrorMessage != "" {
		result.ErrorField = domain.FieldPurchaseCode
	}
	return result
}

// ActivateWizard validates, saves and checks a wizard submission.
func (s Service) ActivateWizard(ctx context.Context, form map[string]string) domain.ActivationResult {
	result := domain.ActivationResult{Mode: domain.ModeWizard}

	if errs := s.validator.Validate(form); errs.Any() {
		result.Errors = errs
		return result
	}

	results := s.env.SaveWizard(form)

	desc := s.descriptors.DescriptorFromForm(form)
	if !s.prober.Probe(ctx, desc) {
		s.logger.Warn("wizard database check failed", "connection", form[domain.FieldDatabaseConnection])
		result.Fail(domain.FieldDatabaseConnection, MessageDatabaseUnreachable)
		return result
	}
	result.DatabaseOK = true

	s.notifier.Notify(ctx, domain.Notice{
		Kind:  domain.NoticeEnvironmentSaved,
		Mode:  domain.ModeWizard,
		Input: copyForm(form),
	})

	s.checkLicense(ctx, &result, strings.TrimSpace(form[domain.FieldPurchaseCode]))
	if result.ErrorMessage != "" {
		result.Fail(domain.FieldPurchaseCode, result.ErrorMessage)
		return result
	}

	result.Results = results
	result.Next = NextStage
	return result
}

// checkLicense runs the shape check and, when it passes, the remote verification.
func (s Service) checkLicense(ctx context.Context, result *domain.ActivationResult, code string) {
	if !license.IsValidPurchaseCode(code) {
		result.ErrorMessage = MessageInvalidPurchaseCode
		return
	}
	verification := s.verifier.Verify(ctx, code, s.appURL)
	if !verification.Success {
		result.ErrorMessage = verification.Message
		return
	}
	result.LicenseOK = true
	result.SiteKey = verification.SiteKey
}

func copyForm(form map[string]string) map[string]string {
	out := make(map[string]string, len(form))
	for k, v := range form {
		out[k] = v
	}
	return out
}
