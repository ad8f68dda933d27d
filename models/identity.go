package models

// AgentIdentity binds one language model to one funded wallet. Identities are
// supplied by the fleet catalog at startup and are immutable for the process
// lifetime.
type AgentIdentity struct {
	ModelID       string `json:"model_id" yaml:"model_id"`
	DisplayName   string `json:"display_name" yaml:"display_name"`
	WalletAddress string `json:"wallet_address" yaml:"wallet_address"`
	SigningKey    string `json:"-" yaml:"-"`
}

// Funded reports whether the agent has a wallet it can trade from.
func (a AgentIdentity) Funded() bool {
	return a.WalletAddress != "" && a.SigningKey != ""
}
