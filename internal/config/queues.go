package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// QueueConfig describes one queue file drained in watch mode
type QueueConfig struct {
	Name          string `yaml:"name"`
	Path          string `yaml:"path"`
	Limit         int    `yaml:"limit"` // Records per pass, 0 means unbounded
	DeleteOnEmpty bool   `yaml:"delete_on_empty"`
	HeaderWidth   int    `yaml:"header_width"` // 0 derives the width from the file length
}

type queuesFile struct {
	Queues []QueueConfig `yaml:"queues"`
}

// LoadQueues loads queues.yaml
func LoadQueues(path string) ([]QueueConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read queues file: %w", err)
	}

	var qf queuesFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("failed to parse queues file: %w", err)
	}

	for i := range qf.Queues {
		if qf.Queues[i].Name == "" {
			qf.Queues[i].Name = qf.Queues[i].Path
		}
	}

	return qf.Queues, nil
}

// Validate checks a single queue definition
func (q QueueConfig) Validate() error {
	if q.Path == "" {
		return fmt.Errorf("path is required")
	}
	if q.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	if q.HeaderWidth < 0 {
		return fmt.Errorf("header_width must not be negative")
	}
	return nil
}
