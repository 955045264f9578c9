// Package creds loads machine connection credentials from disk.
package creds

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// RobotCredentials holds the connection details for a Viam machine.
type RobotCredentials struct {
	Address  string `json:"address"`
	EntityID string `json:"entity_id"`
	APIKey   string `json:"api_key"`
}

// Load reads and parses robot credentials from a JSON file.
func Load(path string) (*RobotCredentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading credentials file")
	}
	var c RobotCredentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "parsing credentials file")
	}
	if c.Address == "" || c.EntityID == "" || c.APIKey == "" {
		return nil, errors.New("credentials file must set address, entity_id, and api_key")
	}
	return &c, nil
}
