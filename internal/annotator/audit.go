package annotator

import (
	"path/filepath"
	"strings"
	"time"

	"fjacquet/ledgerflow/internal/fileutils"
	"fjacquet/ledgerflow/internal/models"
	"fjacquet/ledgerflow/internal/parsererror"

	"gopkg.in/yaml.v3"
)

// AuditTrail is the YAML document written next to the annotated CSV.
type AuditTrail struct {
	RunID       string                 `yaml:"run_id"`
	Period      string                 `yaml:"period"`
	Model       string                 `yaml:"model"`
	GeneratedAt string                 `yaml:"generated_at"`
	Stats       models.AnnotationStats `yaml:"stats"`
	Decisions   []Decision             `yaml:"decisions"`
}

// AuditPath returns the audit file location for an annotated CSV.
func AuditPath(ledgerPath string) string {
	ext := filepath.Ext(ledgerPath)
	return strings.TrimSuffix(ledgerPath, ext) + ".annotations.yaml"
}

// WriteAudit serializes trail to path.
func WriteAudit(path string, trail AuditTrail) error {
	if trail.GeneratedAt == "" {
		trail.GeneratedAt = time.Now().Format(time.RFC3339)
	}
	data, err := yaml.Marshal(&trail)
	if err != nil {
		return &parsererror.WriteError{Path: path, Err: err}
	}
	if err := fileutils.WriteFileAtomic(path, data, models.PermissionOutputFile); err != nil {
		return &parsererror.WriteError{Path: path, Err: err}
	}
	return nil
}

// ReadAudit loads a previously written trail.
func ReadAudit(path string) (*AuditTrail, error) {
	data, err := fileutils.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var trail AuditTrail
	if err := yaml.Unmarshal(data, &trail); err != nil {
		return nil, err
	}
	return &trail, nil
}
