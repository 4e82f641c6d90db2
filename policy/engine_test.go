package policy

import (
	"context"
	"testing"
)

func TestDefaultPolicyDecisions(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	tests := []struct {
		name  string
		input SwitchInput
		want  Decision
	}{
		{"low risk unconfirmed", SwitchInput{RiskLevel: "low"}, DecisionAllow},
		{"medium risk unconfirmed", SwitchInput{RiskLevel: "medium"}, DecisionRequireConfirmation},
		{"high risk unconfirmed", SwitchInput{RiskLevel: "high", ProgressLoss: 80}, DecisionRequireConfirmation},
		{"high risk confirmed", SwitchInput{RiskLevel: "high", UserConfirmed: true}, DecisionAllow},
		{"thrashing blocked", SwitchInput{RiskLevel: "low", UserConfirmed: true, PathwaySwitches: 8}, DecisionBlock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Evaluate(ctx, tt.input)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got != tt.want {
				t.Fatalf("decision = %s, want %s", got, tt.want)
			}
		})
	}
}
