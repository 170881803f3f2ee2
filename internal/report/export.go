package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nadzzz/ttsprobe/internal/result"
)

// Policy decides when a run counts as a success.
type Policy int

const (
	// AnySuccess passes when at least one engine fully succeeded.
	AnySuccess Policy = iota
	// AllSuccess passes when every tested engine fully succeeded.
	AllSuccess
)

// ExitCode returns the process status for the run under policy: 0 on
// success, 1 otherwise. Skipped engines are ignored by AllSuccess.
func ExitCode(run *result.Run, policy Policy) int {
	succeeded := run.Succeeded()
	switch policy {
	case AllSuccess:
		if run.Tested() > 0 && succeeded == run.Tested() {
			return 0
		}
	default:
		if succeeded > 0 {
			return 0
		}
	}
	return 1
}

// Write exports the run to path as YAML (.yaml, .yml) or JSON (anything else).
func Write(path string, run *result.Run) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(run)
	default:
		data, err = json.MarshalIndent(run, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
