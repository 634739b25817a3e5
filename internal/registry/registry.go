package registry

import (
	"strings"
	"sync"

	"github.com/rawblock/otc-engine/pkg/models"
)

// Known-Entity Registry
//
// The engine never owns entity intelligence: labels and the known-desk set
// are injected configuration, supplied by external collaborators. This
// package defines the two ports and a thread-safe in-memory implementation
// used for injection and tests. Lookups always succeed: an unlabeled
// address comes back as {entity_type: "unknown"} so collaborator absence
// degrades detection to its floor instead of failing it.

// Labeler resolves an address to its entity label.
type Labeler interface {
	LookupLabel(address string) models.EntityLabel
}

// DeskRegistry answers known-OTC-desk membership queries.
type DeskRegistry interface {
	IsKnownOTCDesk(address string) bool
	GetDeskInfo(address string) (models.DeskInfo, bool)
	Desks() []models.DeskInfo
}

// Static is an in-memory Labeler + DeskRegistry. Addresses are normalized
// to lower case on both write and read, since EVM addresses arrive in
// mixed checksum casings.
type Static struct {
	mu     sync.RWMutex
	labels map[string]models.EntityLabel
	desks  map[string]models.DeskInfo
	order  []string // desk insertion order for deterministic Desks()
}

// NewStatic builds an empty registry.
func NewStatic() *Static {
	return &Static{
		labels: make(map[string]models.EntityLabel),
		desks:  make(map[string]models.DeskInfo),
	}
}

// AddLabel registers or replaces the label for an address.
func (s *Static) AddLabel(label models.EntityLabel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels[strings.ToLower(label.Address)] = label
}

// AddDesk registers a known OTC desk, labeling it as otc_desk as well.
func (s *Static) AddDesk(desk models.DeskInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(desk.Address)
	if _, exists := s.desks[key]; !exists {
		s.order = append(s.order, key)
	}
	s.desks[key] = desk
	s.labels[key] = models.EntityLabel{
		Address:    desk.Address,
		EntityType: "otc_desk",
		EntityName: desk.Name,
		Confidence: desk.Confidence,
	}
}

// LookupLabel implements Labeler. Absent entries return entity_type
// "unknown" with zero confidence.
func (s *Static) LookupLabel(address string) models.EntityLabel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if label, ok := s.labels[strings.ToLower(address)]; ok {
		return label
	}
	return models.EntityLabel{Address: address, EntityType: "unknown"}
}

// IsKnownOTCDesk implements DeskRegistry.
func (s *Static) IsKnownOTCDesk(address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.desks[strings.ToLower(address)]
	return ok
}

// GetDeskInfo implements DeskRegistry.
func (s *Static) GetDeskInfo(address string) (models.DeskInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	desk, ok := s.desks[strings.ToLower(address)]
	return desk, ok
}

// Desks returns all registered desks in insertion order.
func (s *Static) Desks() []models.DeskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.DeskInfo, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.desks[key])
	}
	return out
}
