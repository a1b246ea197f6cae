package server

import (
	"time"

	"github.com/mohammad-safakhou/marketscout/internal/agent/core"
)

// ResearchRequest is the inbound body for execute and stream endpoints.
type ResearchRequest struct {
	Query        string   `json:"query"`
	ResearchType string   `json:"research_type"`
	Company      string   `json:"company,omitempty"`
	Competitors  []string `json:"competitors,omitempty"`
	Industry     string   `json:"industry,omitempty"`
}

// ResearchResponse wraps a completed workflow envelope.
type ResearchResponse struct {
	ResearchID    string                 `json:"research_id"`
	Status        string                 `json:"status"`
	ResearchType  string                 `json:"research_type"`
	Results       map[string]interface{} `json:"results"`
	Summary       string                 `json:"summary"`
	Timestamp     time.Time              `json:"timestamp"`
	WorkflowTrace *core.WorkflowTrace    `json:"workflow_trace,omitempty"`
}

// ResearchTypeInfo describes one selectable research type.
type ResearchTypeInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AgentStatus describes one pipeline stage for the status endpoint.
type AgentStatus struct {
	Name      string   `json:"name"`
	Role      string   `json:"role"`
	Tools     []string `json:"tools"`
	Available bool     `json:"available"`
}

// HTTPError is the unified error body shape.
type HTTPError struct {
	Error string `json:"error"`
}
