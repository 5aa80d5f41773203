// Package secretscan implements the engine.SecretScanner interface behind
// gitleaks, the QA node's deterministic pre-step (see the gitleaks row of
// SPEC_FULL.md §3): any finding fails QA without an LLM judgment.
package secretscan

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/zricethezav/gitleaks/v8/detect"
	"github.com/zricethezav/gitleaks/v8/report"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devteam/internal/engine"
)

// Scanner runs gitleaks' detector against the files an Implementor step
// reported as modified, scoped to repoRoot.
type Scanner struct {
	detector *detect.Detector
	logger   *zap.Logger
}

// New builds a Scanner using gitleaks' default ruleset.
func New(logger *zap.Logger) (*Scanner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("loading gitleaks default config: %w", err)
	}
	return &Scanner{detector: d, logger: logger}, nil
}

// Scan satisfies engine.SecretScanner: it runs gitleaks' single-file
// detection over each of the given repo-relative paths and adapts any
// findings into engine.SecretFinding.
func (s *Scanner) Scan(ctx context.Context, repoRoot string, files []string) ([]engine.SecretFinding, error) {
	var findings []engine.SecretFinding

	for _, rel := range files {
		abs := filepath.Join(repoRoot, rel)
		fragment, err := readFragment(abs)
		if err != nil {
			s.logger.Warn("secretscan: skipping unreadable file", zap.String("path", abs), zap.Error(err))
			continue
		}

		for _, r := range s.detector.DetectString(fragment) {
			findings = append(findings, engine.SecretFinding{
				File:        rel,
				Line:        lineOf(r),
				Description: describeRule(r),
			})
		}
	}

	return findings, nil
}

func lineOf(r report.Finding) int {
	return r.StartLine
}

func describeRule(r report.Finding) string {
	if r.Description != "" {
		return r.Description
	}
	return r.RuleID
}
