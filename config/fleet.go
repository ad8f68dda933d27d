package config

import (
	"fmt"
	"os"

	"prediction-fleet/models"

	"gopkg.in/yaml.v3"
)

// fleetFile is the on-disk shape of the agent catalog. Signing keys are never
// stored in the file; each entry names the environment variable that holds
// the key.
type fleetFile struct {
	Agents []fleetEntry `yaml:"agents"`
}

type fleetEntry struct {
	ModelID       string `yaml:"model_id"`
	DisplayName   string `yaml:"display_name"`
	WalletAddress string `yaml:"wallet_address"`
	SigningKeyEnv string `yaml:"signing_key_env"`
}

// LoadFleet reads the agent catalog from a YAML file and resolves each
// agent's signing key from the named environment variable.
func LoadFleet(path string) ([]models.AgentIdentity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fleet config: %w", err)
	}
	return ParseFleet(data)
}

// ParseFleet parses fleet YAML. Split from LoadFleet for testability.
func ParseFleet(data []byte) ([]models.AgentIdentity, error) {
	var file fleetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse fleet config: %w", err)
	}

	if len(file.Agents) == 0 {
		return nil, fmt.Errorf("fleet config contains no agents")
	}

	seen := make(map[string]bool, len(file.Agents))
	agents := make([]models.AgentIdentity, 0, len(file.Agents))
	for i, entry := range file.Agents {
		if entry.ModelID == "" {
			return nil, fmt.Errorf("fleet agent %d: model_id is required", i)
		}
		if seen[entry.ModelID] {
			return nil, fmt.Errorf("fleet agent %d: duplicate model_id %q", i, entry.ModelID)
		}
		seen[entry.ModelID] = true

		agent := models.AgentIdentity{
			ModelID:       entry.ModelID,
			DisplayName:   entry.DisplayName,
			WalletAddress: entry.WalletAddress,
		}
		if entry.SigningKeyEnv != "" {
			agent.SigningKey = os.Getenv(entry.SigningKeyEnv)
		}
		agents = append(agents, agent)
	}

	return agents, nil
}
