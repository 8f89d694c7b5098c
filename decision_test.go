package briefing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplanGate(t *testing.T) {
	tests := []struct {
		feedback string
		want     Decision
	}{
		{"", DecisionContinue},
		{"approve", DecisionContinue},
		{"APPROVE", DecisionContinue},
		{"pending", DecisionContinue},
		{"focus on recent papers", DecisionReplan},
	}
	for _, tt := range tests {
		state := &State{PlanFeedback: tt.feedback}
		require.Equal(t, tt.want, ReplanGate(state), "feedback %q", tt.feedback)
	}
}

func TestRevisionGate(t *testing.T) {
	tests := []struct {
		feedback string
		want     Decision
	}{
		{"", DecisionGenerateBrief},
		{"approve", DecisionGenerateBrief},
		{"pending", DecisionGenerateBrief},
		{"tighten section 2", DecisionRefine},
	}
	for _, tt := range tests {
		state := &State{HumanFeedback: tt.feedback}
		require.Equal(t, tt.want, RevisionGate(state), "feedback %q", tt.feedback)
	}
}

func TestToneGate(t *testing.T) {
	tests := []struct {
		prefs string
		want  Decision
	}{
		{"", DecisionSkip},
		{"skip", DecisionSkip},
		{"pending", DecisionSkip},
		{"more formal", DecisionApply},
	}
	for _, tt := range tests {
		state := &State{TonePrefs: tt.prefs}
		require.Equal(t, tt.want, ToneGate(state), "prefs %q", tt.prefs)
	}
}
