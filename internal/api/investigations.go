package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rawblock/otc-engine/internal/graph"
	"github.com/rawblock/otc-engine/internal/tracing"
	"github.com/rawblock/otc-engine/pkg/models"
)

// Investigation is one fund-tracing case: a set of seed addresses, the
// transaction evidence supplied with it, and the latest trace output.
type Investigation struct {
	CaseID        string                     `json:"caseId"`
	Name          string                     `json:"name"`
	Description   string                     `json:"description,omitempty"`
	SeedAddresses []string                   `json:"seedAddresses"`
	Transactions  []models.TransactionRecord `json:"-"`
	Status        string                     `json:"status"`
	CreatedAt     time.Time                  `json:"createdAt"`

	TxCount    int                              `json:"txCount"`
	LastTraces map[string]*models.FlowResult    `json:"lastTraces,omitempty"`    // seed -> latest trace
	Distances  map[string][]models.DeskDistance `json:"deskDistances,omitempty"` // seed -> desk hops
}

type investigationManager struct {
	mu    sync.RWMutex
	cases map[string]*Investigation
}

func newInvestigationManager() *investigationManager {
	return &investigationManager{cases: make(map[string]*Investigation)}
}

func (m *investigationManager) create(name, description string, seeds []string, txs []models.TransactionRecord) *Investigation {
	inv := &Investigation{
		CaseID:        uuid.NewString(),
		Name:          name,
		Description:   description,
		SeedAddresses: seeds,
		Transactions:  txs,
		Status:        "active",
		CreatedAt:     time.Now().UTC(),
		TxCount:       len(txs),
	}
	m.mu.Lock()
	m.cases[inv.CaseID] = inv
	m.mu.Unlock()
	return inv
}

func (m *investigationManager) get(caseID string) *Investigation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cases[caseID]
}

// POST /api/v1/investigation
// Opens a fund-tracing case.
func (h *Handler) handleCreateInvestigation(c *gin.Context) {
	var req struct {
		Name          string                     `json:"name" binding:"required"`
		Description   string                     `json:"description"`
		SeedAddresses []string                   `json:"seedAddresses" binding:"required"`
		Transactions  []models.TransactionRecord `json:"transactions" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if len(req.SeedAddresses) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one seed address is required"})
		return
	}

	inv := h.invs.create(req.Name, req.Description, req.SeedAddresses, req.Transactions)

	c.JSON(http.StatusCreated, gin.H{
		"status":        "created",
		"investigation": inv,
	})
}

// GET /api/v1/investigation/:id
func (h *Handler) handleGetInvestigation(c *gin.Context) {
	inv := h.invs.get(c.Param("id"))
	if inv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Investigation not found"})
		return
	}
	c.JSON(http.StatusOK, inv)
}

// POST /api/v1/investigation/:id/trace
// Traces flow from every seed to the target and measures each seed's hop
// distance to the known desks.
func (h *Handler) handleInvestigationTrace(c *gin.Context) {
	inv := h.invs.get(c.Param("id"))
	if inv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Investigation not found"})
		return
	}

	var req struct {
		Target        string  `json:"target" binding:"required"`
		MaxHops       int     `json:"maxHops"`
		MinConfidence float64 `json:"minConfidence"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	cfg := h.traceCfg
	if req.MaxHops > 0 {
		cfg.MaxHops = req.MaxHops
	}
	if req.MinConfidence > 0 {
		cfg.MinConfidence = req.MinConfidence
	}

	tracer := tracing.NewTracer(graph.Build(inv.Transactions), cfg)

	var deskAddresses []string
	for _, desk := range h.reg.Desks() {
		deskAddresses = append(deskAddresses, desk.Address)
	}

	traces := make(map[string]*models.FlowResult, len(inv.SeedAddresses))
	distances := make(map[string][]models.DeskDistance, len(inv.SeedAddresses))
	for _, seed := range inv.SeedAddresses {
		result, err := tracer.TraceFlow(seed, req.Target)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		traces[seed] = result
		distances[seed] = tracer.HopDistancesToDesks(seed, h.reg, deskAddresses)
	}

	h.invs.mu.Lock()
	inv.LastTraces = traces
	inv.Distances = distances
	h.invs.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"caseId":        inv.CaseID,
		"target":        req.Target,
		"traces":        traces,
		"deskDistances": distances,
	})
}
