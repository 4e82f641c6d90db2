package domain

import (
	"errors"
	"math"
	"testing"
)

func TestParsePathway(t *testing.T) {
	for _, p := range Pathways() {
		got, err := ParsePathway(string(p))
		if err != nil {
			t.Fatalf("ParsePathway(%s): %v", p, err)
		}
		if got != p {
			t.Fatalf("ParsePathway(%s) = %s", p, got)
		}
	}

	_, err := ParsePathway("speedrun")
	if !errors.Is(err, ErrInvalidPathway) {
		t.Fatalf("expected ErrInvalidPathway, got %v", err)
	}
}

func TestPhaseWeightsSumToOne(t *testing.T) {
	for _, p := range Pathways() {
		sum := 0.0
		for _, ph := range p.Phases() {
			sum += p.PhaseWeight(ph.ID)
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Fatalf("%s: weights sum to %v", p, sum)
		}
	}
}

func TestNextPhaseOrdering(t *testing.T) {
	p := PathwayNewIdea
	phases := p.Phases()

	cur := p.FirstPhase()
	if cur.ID != phases[0].ID {
		t.Fatalf("first phase = %s", cur.ID)
	}
	for i := 0; i < len(phases)-1; i++ {
		next, ok := p.NextPhase(phases[i].ID)
		if !ok {
			t.Fatalf("no next phase after %s", phases[i].ID)
		}
		if next.ID != phases[i+1].ID {
			t.Fatalf("next of %s = %s, want %s", phases[i].ID, next.ID, phases[i+1].ID)
		}
	}
	if _, ok := p.NextPhase(phases[len(phases)-1].ID); ok {
		t.Fatalf("expected no phase after the last one")
	}
}

func TestSynthesisSharedAcrossPathways(t *testing.T) {
	for _, p := range Pathways() {
		if !p.HasPhase("synthesis") {
			t.Fatalf("%s is missing the synthesis phase", p)
		}
	}
}
