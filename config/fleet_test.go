package config

import (
	"os"
	"path/filepath"
	"testing"
)

const fleetYAML = `
agents:
  - model_id: model-a
    display_name: Agent A
    wallet_address: "0xaaa"
    signing_key_env: TEST_FLEET_KEY_A
  - model_id: model-b
    display_name: Agent B
    wallet_address: "0xbbb"
`

func TestParseFleet(t *testing.T) {
	t.Setenv("TEST_FLEET_KEY_A", "secret-a")

	agents, err := ParseFleet([]byte(fleetYAML))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(agents))
	}

	if agents[0].SigningKey != "secret-a" {
		t.Error("expected signing key resolved from environment")
	}
	if !agents[0].Funded() {
		t.Error("expected model-a to be funded")
	}
	if agents[1].Funded() {
		t.Error("model-b has no signing key env, must be unfunded")
	}
}

func TestParseFleetRejectsDuplicates(t *testing.T) {
	data := []byte(`
agents:
  - model_id: model-a
  - model_id: model-a
`)
	if _, err := ParseFleet(data); err == nil {
		t.Error("expected error for duplicate model_id")
	}
}

func TestParseFleetRejectsMissingModelID(t *testing.T) {
	data := []byte(`
agents:
  - display_name: Nameless
`)
	if _, err := ParseFleet(data); err == nil {
		t.Error("expected error for missing model_id")
	}
}

func TestParseFleetRejectsEmptyCatalog(t *testing.T) {
	if _, err := ParseFleet([]byte("agents: []")); err == nil {
		t.Error("expected error for empty catalog")
	}
	if _, err := ParseFleet([]byte("{not yaml")); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestLoadFleet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fleet.yaml")
	if err := os.WriteFile(path, []byte(fleetYAML), 0o600); err != nil {
		t.Fatalf("failed to write fleet file: %v", err)
	}

	agents, err := LoadFleet(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(agents) != 2 {
		t.Errorf("expected 2 agents, got %d", len(agents))
	}

	if _, err := LoadFleet(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
