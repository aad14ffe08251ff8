package a2a

import (
	"github.com/tuanzicui/openmeteo-agent/internal/config"
)

type CardAuth struct {
	Type string `json:"type"`
}

type CardEndpoints struct {
	Task   string `json:"task"`
	Status string `json:"status"`
}

type CardPolicies struct {
	Network string `json:"network"`
	PII     string `json:"pii"`
	Logs    string `json:"logs"`
}

// AgentCard is the discovery document published at /a2a/agent-card.
type AgentCard struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Version      string        `json:"version"`
	Owner        string        `json:"owner"`
	Capabilities []string      `json:"capabilities"`
	Modalities   []string      `json:"modalities"`
	Auth         CardAuth      `json:"auth"`
	Endpoints    CardEndpoints `json:"endpoints"`
	Policies     CardPolicies  `json:"policies"`
	Schema       string        `json:"schema"`
}

// DefaultCard returns the built-in card identity.
func DefaultCard() AgentCard {
	return AgentCard{
		ID:           "agent:openmeteo:v1",
		Name:         "OpenMeteo Agent",
		Version:      "1.0.0",
		Owner:        "your-org",
		Capabilities: []string{"data.fetch", "geo.monitor"},
		Modalities:   []string{"json"},
		Auth:         CardAuth{Type: "api-key"},
		Endpoints: CardEndpoints{
			Task:   "POST /a2a/task",
			Status: "GET /a2a/task/{id}",
		},
		Policies: CardPolicies{
			Network: "egress-allowlist",
			PII:     "no-store",
			Logs:    "hash-only",
		},
		Schema: "https://a2a-protocol.org/schema/v1",
	}
}

// CardFromDefinitions applies deployment overrides on top of the default card.
func CardFromDefinitions(defs *config.Definitions) AgentCard {
	card := DefaultCard()
	if defs == nil {
		return card
	}
	if defs.Card.ID != "" {
		card.ID = defs.Card.ID
	}
	if defs.Card.Name != "" {
		card.Name = defs.Card.Name
	}
	if defs.Card.Version != "" {
		card.Version = defs.Card.Version
	}
	if defs.Card.Owner != "" {
		card.Owner = defs.Card.Owner
	}
	return card
}
