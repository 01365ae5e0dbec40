package config

import (
	"encoding/json"
	"fmt"
	"os"

	"arbengine/pkg/types"
)

// Credentials is one venue's secret material. A restex venue uses
// APIKey/APISecret/Passphrase; a chainex venue uses PrivateKey. Never
// logged or mutated after load.
type Credentials struct {
	APIKey     string `json:"api_key,omitempty"`
	APISecret  string `json:"api_secret,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`
	PrivateKey string `json:"private_key,omitempty"`
}

// LoadCredentials reads a JSON document keyed by venue id from path.
// Plain encoding/json rather than viper: credentials are never merged
// with defaults or templated, just read once at startup.
func LoadCredentials(path string) (map[types.VenueID]Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	var raw map[string]Credentials
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse credentials file: %w", err)
	}

	creds := make(map[types.VenueID]Credentials, len(raw))
	for id, c := range raw {
		creds[types.VenueID(id)] = c
	}
	return creds, nil
}
