// Package domain defines the core domain models for the BMad session orchestrator.
package domain

// Pathway identifies one of the fixed guided strategic-thinking workflows.
type Pathway string

const (
	PathwayNewIdea               Pathway = "new-idea"
	PathwayBusinessModel         Pathway = "business-model"
	PathwayStrategicOptimization Pathway = "strategic-optimization"
)

// PhaseDescriptor describes one bounded sub-stage of a pathway.
type PhaseDescriptor struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Minutes int    `json:"minutes"`
}

// pathwayPhases is the closed table of phase sequences. The "synthesis" phase
// is shared across pathways so that a switch maps part of the progress onto
// the target instead of losing everything.
var pathwayPhases = map[Pathway][]PhaseDescriptor{
	PathwayNewIdea: {
		{ID: "ideation", Name: "Creative Ideation", Minutes: 12},
		{ID: "market-exploration", Name: "Market Exploration", Minutes: 12},
		{ID: "concept-refinement", Name: "Concept Refinement", Minutes: 12},
		{ID: "synthesis", Name: "Synthesis & Next Steps", Minutes: 9},
	},
	PathwayBusinessModel: {
		{ID: "revenue-streams", Name: "Revenue Stream Analysis", Minutes: 12},
		{ID: "customer-segments", Name: "Customer Segment Mapping", Minutes: 12},
		{ID: "value-proposition", Name: "Value Proposition Design", Minutes: 13},
		{ID: "synthesis", Name: "Synthesis & Next Steps", Minutes: 13},
	},
	PathwayStrategicOptimization: {
		{ID: "current-state", Name: "Current State Assessment", Minutes: 10},
		{ID: "opportunity-mapping", Name: "Opportunity Mapping", Minutes: 12},
		{ID: "priority-ranking", Name: "Priority Ranking", Minutes: 8},
		{ID: "synthesis", Name: "Synthesis & Next Steps", Minutes: 10},
	},
}

// Pathways returns the closed enumeration in a stable order.
func Pathways() []Pathway {
	return []Pathway{PathwayNewIdea, PathwayBusinessModel, PathwayStrategicOptimization}
}

// ParsePathway validates a pathway identifier.
func ParsePathway(s string) (Pathway, error) {
	p := Pathway(s)
	if _, ok := pathwayPhases[p]; !ok {
		return "", ErrInvalidPathway
	}
	return p, nil
}

// Valid reports whether p is a known pathway.
func (p Pathway) Valid() bool {
	_, ok := pathwayPhases[p]
	return ok
}

// Phases returns a copy of the ordered phase sequence for p.
func (p Pathway) Phases() []PhaseDescriptor {
	src := pathwayPhases[p]
	out := make([]PhaseDescriptor, len(src))
	copy(out, src)
	return out
}

// TotalMinutes returns the nominal duration of the whole pathway.
func (p Pathway) TotalMinutes() int {
	total := 0
	for _, ph := range pathwayPhases[p] {
		total += ph.Minutes
	}
	return total
}

// PhaseWeight returns the phase's share of the pathway total, in [0,1].
// Weights across a pathway sum to 1.
func (p Pathway) PhaseWeight(phaseID string) float64 {
	total := p.TotalMinutes()
	if total == 0 {
		return 0
	}
	for _, ph := range pathwayPhases[p] {
		if ph.ID == phaseID {
			return float64(ph.Minutes) / float64(total)
		}
	}
	return 0
}

// HasPhase reports whether the pathway contains the given phase id.
func (p Pathway) HasPhase(phaseID string) bool {
	for _, ph := range pathwayPhases[p] {
		if ph.ID == phaseID {
			return true
		}
	}
	return false
}

// FirstPhase returns the entry phase of the pathway.
func (p Pathway) FirstPhase() PhaseDescriptor {
	return pathwayPhases[p][0]
}

// NextPhase returns the phase following phaseID, or false when phaseID is the
// last phase (or unknown).
func (p Pathway) NextPhase(phaseID string) (PhaseDescriptor, bool) {
	phases := pathwayPhases[p]
	for i, ph := range phases {
		if ph.ID == phaseID && i+1 < len(phases) {
			return phases[i+1], true
		}
	}
	return PhaseDescriptor{}, false
}
