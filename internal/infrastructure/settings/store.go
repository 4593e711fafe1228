package settings

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	defaultCloudAssistThreshold        = 0.6
	defaultMinimumAcceptableConfidence = 0.4
)

type fileSettings struct {
	CloudAnalysisEnabled        *bool    `yaml:"cloud_analysis_enabled"`
	HighAccuracyMode            *bool    `yaml:"high_accuracy_mode"`
	CloudAssistThreshold        *float64 `yaml:"cloud_assist_threshold"`
	MinimumAcceptableConfidence *float64 `yaml:"minimum_acceptable_confidence"`
}

// Store reads user-facing analysis settings from a YAML file. A missing
// file means defaults; a missing key keeps its default, so a settings file
// only has to name what it changes.
type Store struct {
	mu sync.RWMutex

	path                        string
	cloudAnalysisEnabled        bool
	highAccuracyMode            bool
	cloudAssistThreshold        float64
	minimumAcceptableConfidence float64
}

func Load(path string) (*Store, error) {
	s := &Store{
		path:                        path,
		cloudAnalysisEnabled:        true,
		highAccuracyMode:            false,
		cloudAssistThreshold:        defaultCloudAssistThreshold,
		minimumAcceptableConfidence: defaultMinimumAcceptableConfidence,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the settings file. Defaults apply when the file is absent.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read settings file: %w", err)
	}

	var parsed fileSettings
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("parse settings file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if parsed.CloudAnalysisEnabled != nil {
		s.cloudAnalysisEnabled = *parsed.CloudAnalysisEnabled
	}
	if parsed.HighAccuracyMode != nil {
		s.highAccuracyMode = *parsed.HighAccuracyMode
	}
	if parsed.CloudAssistThreshold != nil {
		s.cloudAssistThreshold = clamp01(*parsed.CloudAssistThreshold)
	}
	if parsed.MinimumAcceptableConfidence != nil {
		s.minimumAcceptableConfidence = clamp01(*parsed.MinimumAcceptableConfidence)
	}
	return nil
}

func (s *Store) CloudAnalysisEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cloudAnalysisEnabled
}

func (s *Store) HighAccuracyMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.highAccuracyMode
}

func (s *Store) CloudAssistThreshold() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cloudAssistThreshold
}

func (s *Store) MinimumAcceptableConfidence() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minimumAcceptableConfidence
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
