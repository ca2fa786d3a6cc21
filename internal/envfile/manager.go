package envfile

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/splax/installer/internal/domain"
)

// Messages returned to the installer after a save attempt.
const (
	MessageSaved      = "Your .env file settings have been saved."
	MessageSaveFailed = "Unable to save the .env file, Please create it manually."
)

// Manager reads and writes the application's environment file.
type Manager struct {
	path        string
	examplePath string
	logger      *slog.Logger
	mu          sync.Mutex
	newKey      func() (string, error)
}

// New constructs a Manager for the env file at path. When the file is missing
// it is seeded from examplePath on first read.
func New(path, examplePath string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{path: path, examplePath: examplePath, logger: logger, newKey: generateAppKey}
}

// Path returns the env file location.
func (m *Manager) Path() string {
	return m.path
}

// Content returns the raw env file, creating it from the example when absent.
func (m *Manager) Content() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureFile(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		return "", fmt.Errorf("read env file: %w", err)
	}
	return string(data), nil
}

// Values parses the env file into key/value pairs.
func (m *Manager) Values() (domain.EnvironmentConfiguration, error) {
	content, err := m.Content()
	if err != nil {
		return nil, err
	}
	values, err := godotenv.Unmarshal(content)
	if err != nil {
		return nil, fmt.Errorf("parse env file: %w", err)
	}
	return domain.EnvironmentConfiguration(values), nil
}

// Load exports the env file into the process environment. Variables that are
// already set keep their values, and a missing file is not an error.
func (m *Manager) Load() error {
	if err := godotenv.Load(m.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// SaveClassic writes raw editor content verbatim and reports the outcome.
func (m *Manager) SaveClassic(raw string) string {
	if err := m.write(raw); err != nil {
		m.logger.Error("save env file", "mode", domain.ModeClassic, "path", m.path, "error", err)
		return MessageSaveFailed
	}
	m.logger.Info("env file saved", "mode", domain.ModeClassic, "path", m.path)
	return MessageSaved
}

// SaveWizard renders the wizard form into env format, writes it and reports the outcome.
func (m *Manager) SaveWizard(form map[string]string) string {
	key, err := m.newKey()
	if err != nil {
		m.logger.Error("generate app key", "error", err)
		return MessageSaveFailed
	}
	content, err := Render(form, key)
	if err != nil {
		m.logger.Error("render env file", "error", err)
		return MessageSaveFailed
	}
	if err := m.write(content); err != nil {
		m.logger.Error("save env file", "mode", domain.ModeWizard, "path", m.path, "error", err)
		return MessageSaveFailed
	}
	m.logger.Info("env file saved", "mode", domain.ModeWizard, "path", m.path)
	return MessageSaved
}

func (m *Manager) write(content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dir := filepath.Dir(m.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create env dir: %w", err)
		}
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace env file: %w", err)
	}
	return nil
}

func (m *Manager) ensureFile() error {
	if _, err := os.Stat(m.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat env file: %w", err)
	}
	var seed []byte
	if strings.TrimSpace(m.examplePath) != "" {
		data, err := os.ReadFile(m.examplePath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read env example: %w", err)
		}
		seed = data
	}
	if err := os.WriteFile(m.path, seed, 0o600); err != nil {
		return fmt.Errorf("seed env file: %w", err)
	}
	m.logger.Info("env file created", "path", m.path, "from_example", len(seed) > 0)
	return nil
}
