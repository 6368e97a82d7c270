// Package validator decides whether a student utterance satisfies the
// required words of a scripted turn.
//
// Matching rules:
//   - Comparison is case-insensitive on NFC-normalized text; accents are kept.
//   - Single words must match on Unicode word boundaries.
//   - Phrases match by plain containment, then by punctuation-stripped
//     containment, then word-by-word in order with other words in between.
//   - Tokens carrying punctuation ("E Lei?") also match their stripped form.
package validator

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"polybot/internal/models"
)

// DetectRequiresAll infers AND semantics from the prose requirement.
func DetectRequiresAll(requirement string) bool {
	r := strings.ToLower(strings.TrimSpace(requirement))
	return strings.Contains(r, " and ") || strings.HasPrefix(r, "and ")
}

// CheckTurn validates a message against a turn, honoring an explicit
// RequiresAll flag before falling back to prose detection.
func CheckTurn(userMessage string, turn *models.TurnDescriptor) models.ValidationResult {
	requiresAll := DetectRequiresAll(turn.UserRequirement)
	if turn.RequiresAll != nil {
		requiresAll = *turn.RequiresAll
	}
	return check(userMessage, turn.RequiredWords, requiresAll)
}

// Check validates a message against required words using the AND/OR
// semantics detected from requirement.
func Check(userMessage string, required []string, requirement string) models.ValidationResult {
	return check(userMessage, required, DetectRequiresAll(requirement))
}

func check(userMessage string, required []string, requiresAll bool) models.ValidationResult {
	res := models.ValidationResult{
		UsedWords:    []string{},
		MissingWords: []string{},
		RequiresAll:  requiresAll,
	}

	msg := normalize(userMessage)
	for _, tok := range required {
		if msg != "" && MatchToken(msg, tok) {
			res.UsedWords = append(res.UsedWords, tok)
		} else {
			res.MissingWords = append(res.MissingWords, tok)
		}
	}

	if requiresAll {
		res.Valid = len(res.MissingWords) == 0
		return res
	}

	res.Valid = len(res.UsedWords) > 0
	if res.Valid {
		res.MissingWords = []string{}
	}
	return res
}

// MatchToken reports whether one required token occurs in message.
func MatchToken(message, token string) bool {
	msg := normalize(message)
	tok := normalize(token)
	if msg == "" || tok == "" {
		return false
	}

	if strings.Contains(tok, " ") {
		return matchPhrase(msg, tok)
	}

	if matchWord(msg, tok) {
		return true
	}
	bare := stripPunct(tok)
	if bare != "" && bare != tok {
		return matchWord(stripPunct(msg), bare)
	}
	return false
}

func matchPhrase(msg, tok string) bool {
	if strings.Contains(msg, tok) {
		return true
	}

	bareMsg, bareTok := stripPunct(msg), stripPunct(tok)
	if bareTok == "" {
		return false
	}
	if strings.Contains(bareMsg, bareTok) {
		return true
	}

	return inOrder(strings.Fields(bareMsg), strings.Fields(bareTok))
}

// inOrder checks that every word of want appears in have and that their
// first occurrences are strictly increasing.
func inOrder(have, want []string) bool {
	last := -1
	for _, w := range want {
		idx := -1
		for i, h := range have {
			if h == w {
				idx = i
				break
			}
		}
		if idx <= last {
			return false
		}
		last = idx
	}
	return true
}

// Go's \b is ASCII only, so boundaries are spelled out with Unicode classes.
const boundary = `[^\p{L}\p{N}_]`

func matchWord(msg, word string) bool {
	re, err := regexp.Compile(`(?i)(?:^|` + boundary + `)` + regexp.QuoteMeta(word) + `(?:$|` + boundary + `)`)
	if err != nil {
		return strings.Contains(msg, word)
	}
	return re.MatchString(msg)
}

func normalize(s string) string {
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// stripPunct drops everything that is not a letter, digit or space and
// collapses the remaining whitespace.
func stripPunct(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
