package boss

import (
	"strings"

	"polybot/internal/models"
)

const (
	turnsPerRound = 4
	lastRound     = 2
)

// DefaultRound2Markers identify the formal round-2 opener in every module.
var DefaultRound2Markers = []string{"buongiorno", "come posso aiutarla"}

// Position is where the incoming utterance falls in the scripted dialogue.
type Position struct {
	UserMessageCount int
	CurrentTurn      int // 1-based across both rounds
	Round            int // 1 or 2
	TurnInRound      int // 1..4
	Round2Detected   bool
}

// Reconstruct derives the position from replayed history, which does not
// yet contain the incoming message. Because the client clears history when
// round 2 starts, a first assistant message containing any marker forces
// round 2 while keeping the turn within the round.
func Reconstruct(history []models.ChatMessage, markers []string) Position {
	count := models.CountUserMessages(history)
	first, ok := firstAssistantMessage(history)
	p := positionForTurn(count+1, ok && containsAny(first, markers))
	p.UserMessageCount = count
	return p
}

// positionForTurn places a 1-based overall turn. Replies past the end of
// the script stay on the final turn.
func positionForTurn(turn int, round2 bool) Position {
	if turn < 1 {
		turn = 1
	}
	p := Position{
		CurrentTurn:    turn,
		Round:          (turn-1)/turnsPerRound + 1,
		TurnInRound:    (turn-1)%turnsPerRound + 1,
		Round2Detected: round2,
	}
	if round2 {
		// The history restarted at the round-2 opener, so every turn
		// counts within round 2.
		p.Round = lastRound
		p.TurnInRound = min(turn, turnsPerRound)
		return p
	}
	if p.Round > lastRound {
		p.Round = lastRound
		p.TurnInRound = turnsPerRound
	}
	return p
}

// Markers merges the exercise's own markers, the defaults and the actual
// round-2 opener into one lowercase list.
func Markers(ex *models.BossExercise) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, m := range DefaultRound2Markers {
		add(m)
	}
	if ex != nil {
		for _, m := range ex.Round2Markers {
			add(m)
		}
		if r := ex.Round(lastRound); r != nil {
			add(r.Opener())
		}
	}
	return out
}

func firstAssistantMessage(history []models.ChatMessage) (string, bool) {
	for _, m := range history {
		if !m.IsUser() {
			return m.Body(), true
		}
	}
	return "", false
}

func containsAny(s string, markers []string) bool {
	s = strings.ToLower(s)
	for _, m := range markers {
		if m != "" && strings.Contains(s, m) {
			return true
		}
	}
	return false
}
