package models

import "time"

// Cluster topology classifications.
const (
	TopologyHubSpoke = "hub_spoke"
	TopologyMesh     = "mesh"
	TopologyChain    = "chain"
	TopologyMixed    = "mixed"
	TopologyIsolated = "isolated"
)

// Cluster is a group of addresses believed to be under common control.
// ClusterID is a deterministic hash over the sorted seed list, so the same
// seed set always resolves to the same cluster regardless of input order.
// MemberAddresses only ever grows: updates admit new members, never evict.
type Cluster struct {
	ClusterID       string   `json:"clusterId"`
	SeedAddresses   []string `json:"seedAddresses"` // immutable after creation
	MemberAddresses []string `json:"memberAddresses"`

	TopologyType string   `json:"topologyType"` // hub_spoke/mesh/chain/mixed/isolated
	HubAddresses []string `json:"hubAddresses"` // top members by degree centrality
	Density      float64  `json:"density"`      // edges / possible edges among members

	FirstActivity  time.Time `json:"firstActivity"`
	LastActivity   time.Time `json:"lastActivity"`
	TxCount        int       `json:"txCount"`
	TotalVolumeUSD float64   `json:"totalVolumeUsd"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ResolvedEntity is one named output of entity resolution: the union of
// addresses linked by a specific heuristic (peel chain, timing correlation).
type ResolvedEntity struct {
	EntityID   string   `json:"entityId"`
	Addresses  []string `json:"addresses"`
	Heuristics []string `json:"heuristics"` // detectors that contributed links
	Confidence float64  `json:"confidence"` // strongest contributing link
}
