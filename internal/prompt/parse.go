package prompt

import (
	"regexp"
	"strings"

	"polybot/internal/models"
)

var (
	correctedRe   = regexp.MustCompile(`(?im)^\s*\**CORRECTED\**\s*:\**\s*(.+?)\s*$`)
	explanationRe = regexp.MustCompile(`(?im)^\s*\**EXPLANATION\**\s*:\**\s*(.+?)\s*$`)
)

// ParseGrammarCheck reads a grammar-checker reply. It returns nil when the
// sentence is fine or the reply does not follow the format.
func ParseGrammarCheck(original, reply string) *models.CorrectionData {
	if strings.Contains(strings.ToUpper(reply), "NO_ERROR") {
		return nil
	}
	m := correctedRe.FindStringSubmatch(reply)
	if m == nil {
		return nil
	}
	corrected := strings.Trim(m[1], `"'`)
	if corrected == "" || strings.EqualFold(strings.TrimSpace(corrected), strings.TrimSpace(original)) {
		return nil
	}

	cd := &models.CorrectionData{Original: original, Corrected: corrected}
	if e := explanationRe.FindStringSubmatch(reply); e != nil {
		cd.Explanation = e[1]
	}
	return cd
}

// ParseYesNo reports whether a goal-assessor reply is a YES. Anything that
// does not start with YES counts as NO.
func ParseYesNo(reply string) bool {
	f := strings.Fields(strings.ToUpper(reply))
	if len(f) == 0 {
		return false
	}
	return strings.Trim(f[0], ".!,*\"'") == "YES"
}
