package goalcheck

import (
	"encoding/json"
	"regexp"
	"strings"

	"polybot/internal/llm"
	"polybot/internal/models"
)

var (
	fullSchema = &llm.Schema{
		Name: "goal_check",
		Definition: map[string]any{
			"type":     "object",
			"required": []string{"thought", "scene_status", "reply"},
			"properties": map[string]any{
				"thought":      map[string]any{"type": "string"},
				"scene_status": map[string]any{"type": "string"},
				"reply":        map[string]any{"type": "string"},
			},
		},
	}
	statusSchema = &llm.Schema{
		Name: "goal_check_status",
		Definition: map[string]any{
			"type":     "object",
			"required": []string{"scene_status"},
			"properties": map[string]any{
				"scene_status": map[string]any{"type": "string"},
			},
		},
	}

	thoughtKeyRe = regexp.MustCompile(`"thought"\s*:`)
	statusKeyRe  = regexp.MustCompile(`"scene_status"\s*:`)
	replyKeyRe   = regexp.MustCompile(`"reply"\s*:`)

	// Salvage for objects cut off by the token limit.
	statusValueRe  = regexp.MustCompile(`"scene_status"\s*:\s*"([A-Za-z_]+)"`)
	thoughtValueRe = regexp.MustCompile(`"thought"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	replyValueRe   = regexp.MustCompile(`"reply"\s*:\s*"((?:[^"\\]|\\.)*)"`)

	completionRe = regexp.MustCompile(`(?i)\b(complete|completed|finished|done|achieved|all conditions)\b`)
	negationRe   = regexp.MustCompile(`(?i)(\bnot|n't)\s+((yet|been)\s+)*$`)
	farewellRe   = regexp.MustCompile(`(?i)\b(grazie|arrivederci|ciao|goodbye|bye|buona giornata|buonasera)\b`)
	priceRe      = regexp.MustCompile(`(?i)(\beuro\b|€|\bcosta\b|\btotale\b|\bprice\b|\bprezzo\b)`)
)

const (
	contextWindow     = 4
	minContextHistory = 6
)

// Parse turns raw model output into a verdict. Layers, in order: an object
// with all three keys, an object with scene_status, the whole text as
// JSON, then heuristic rescue from the text and the last messages of
// history. The status is always ACTIVE or COMPLETE.
func Parse(raw string, history []models.ChatMessage) Verdict {
	objects := jsonObjects(raw)

	for _, obj := range objects {
		if !thoughtKeyRe.MatchString(obj) || !statusKeyRe.MatchString(obj) || !replyKeyRe.MatchString(obj) {
			continue
		}
		if v, ok := decode(fullSchema, obj); ok {
			return v
		}
	}

	for _, obj := range objects {
		if !statusKeyRe.MatchString(obj) {
			continue
		}
		if v, ok := decode(statusSchema, obj); ok {
			return v
		}
	}
	if m := statusValueRe.FindStringSubmatch(raw); m != nil {
		r := models.GoalCheckResult{SceneStatus: m[1]}
		if t := thoughtValueRe.FindStringSubmatch(raw); t != nil {
			r.Thought = unquote(t[1])
		}
		if rp := replyValueRe.FindStringSubmatch(raw); rp != nil {
			r.Reply = unquote(rp[1])
		}
		return finish(r, Parsed)
	}

	if v, ok := decodeLoose(raw); ok {
		return v
	}

	if v, ok := rescue(raw, history); ok {
		return v
	}

	return Verdict{GoalCheckResult: models.GoalCheckResult{
		Thought:     "could not parse goal check output",
		SceneStatus: models.SceneActive,
		Reply:       "...",
	}}
}

func decode(schema *llm.Schema, obj string) (Verdict, bool) {
	if _, err := llm.ValidateJSON(schema, []byte(obj)); err != nil {
		return Verdict{}, false
	}
	var r models.GoalCheckResult
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return Verdict{}, false
	}
	return finish(r, Parsed), true
}

// decodeLoose accepts the whole response as a JSON object with
// differently spelled keys ("Scene_Status", "status").
func decodeLoose(raw string) (Verdict, bool) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.Trim(text, "`\n ")

	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return Verdict{}, false
	}
	var r models.GoalCheckResult
	found := false
	for k, v := range m {
		s, _ := v.(string)
		switch strings.ToLower(strings.ReplaceAll(k, "_", "")) {
		case "scenestatus", "status":
			r.SceneStatus = s
			found = true
		case "thought", "reasoning":
			r.Thought = s
		case "reply", "response":
			r.Reply = s
		}
	}
	if !found {
		return Verdict{}, false
	}
	return finish(r, Parsed), true
}

func finish(r models.GoalCheckResult, src Source) Verdict {
	r.SceneStatus = normalizeStatus(r.SceneStatus)
	r.Reply = strings.TrimSpace(r.Reply)
	if r.Reply == "" {
		r.Reply = "..."
		if r.SceneStatus == models.SceneComplete {
			r.Reply = closingReply
		}
	}
	return Verdict{GoalCheckResult: r, Source: src}
}

func normalizeStatus(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "COMPLETE", "COMPLETED":
		return models.SceneComplete
	default:
		return models.SceneActive
	}
}

func rescue(raw string, history []models.ChatMessage) (Verdict, bool) {
	for _, loc := range completionRe.FindAllStringIndex(raw, -1) {
		if negationRe.MatchString(raw[:loc[0]]) {
			continue
		}
		return Verdict{
			GoalCheckResult: models.GoalCheckResult{
				Thought:     "rescued: model output mentions completion",
				SceneStatus: models.SceneComplete,
				Reply:       closingReply,
			},
			Source: Rescued,
		}, true
	}

	if len(history) < minContextHistory {
		return Verdict{}, false
	}
	recent := history
	if len(recent) > contextWindow {
		recent = recent[len(recent)-contextWindow:]
	}
	var farewell, price bool
	for _, m := range recent {
		body := m.Body()
		farewell = farewell || farewellRe.MatchString(body)
		price = price || priceRe.MatchString(body)
	}
	if farewell && price {
		return Verdict{
			GoalCheckResult: models.GoalCheckResult{
				Thought:     "rescued: price given and learner said goodbye",
				SceneStatus: models.SceneComplete,
				Reply:       closingReply,
			},
			Source: Rescued,
		}, true
	}
	return Verdict{}, false
}

// jsonObjects returns every balanced top-level {...} span in s. Braces
// inside string literals are ignored.
func jsonObjects(s string) []string {
	var (
		out      []string
		depth    int
		start    = -1
		inString bool
		escaped  bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					out = append(out, s[start:i+1])
				}
			}
		}
	}
	return out
}

func unquote(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}
