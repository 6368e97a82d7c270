package curriculum

import (
	"fmt"

	"polybot/internal/models"
)

const (
	roundsPerBoss = 2
	turnsPerRound = 4
)

// Validate checks the structural invariants of a boss exercise: two rounds
// numbered 1 and 2, four turns each numbered 1..4, and at least one required
// word per turn.
func Validate(ex *models.BossExercise) error {
	if len(ex.ConversationFlow) != roundsPerBoss {
		return fmt.Errorf("module %s: want %d rounds, got %d", ex.ModuleID, roundsPerBoss, len(ex.ConversationFlow))
	}
	for n := 1; n <= roundsPerBoss; n++ {
		r := ex.Round(n)
		if r == nil {
			return fmt.Errorf("module %s: round %d missing", ex.ModuleID, n)
		}
		if len(r.Turns) != turnsPerRound {
			return fmt.Errorf("module %s round %d: want %d turns, got %d", ex.ModuleID, n, turnsPerRound, len(r.Turns))
		}
		for i, t := range r.Turns {
			if t.Turn != i+1 {
				return fmt.Errorf("module %s round %d: turn %d out of order", ex.ModuleID, n, t.Turn)
			}
			if len(t.RequiredWords) == 0 {
				return fmt.Errorf("module %s round %d turn %d: no required words", ex.ModuleID, n, t.Turn)
			}
			if t.AIMessage == "" {
				return fmt.Errorf("module %s round %d turn %d: empty ai_message", ex.ModuleID, n, t.Turn)
			}
		}
	}
	return nil
}
