package chat

// params are the fixed generation settings of one call site.
type params struct {
	maxTokens   int
	temperature float64
	topP        float64
}

var (
	initiateParams  = params{maxTokens: 40, temperature: 0.8, topP: 0.95}
	assessParams    = params{maxTokens: 5, temperature: 0.1}
	grammarParams   = params{maxTokens: 100, temperature: 0.1}
	tutorParams     = params{maxTokens: 60, temperature: 0.7, topP: 0.9}
	characterParams = params{maxTokens: 35, temperature: 0.5, topP: 0.9}
)

const (
	// fallbackGreeting is used when the initiation line comes back empty.
	fallbackGreeting = "Ciao! Come stai oggi?"

	tutorErrorReply     = "Scusa, c'è stato un problema. Puoi ripetere?"
	tutorEmptyReply     = "Puoi dirmi qualcosa di più?"
	goalAchievedReply   = "Perfetto! Hai raggiunto l'obiettivo della lezione. Bravissimo!"
	characterErrorReply = "Scusi, può ripetere?"
	practiceGreeting    = "Buongiorno! Come posso aiutarla?"

	// Short generations under this many runes count as empty.
	minGeneratedRunes = 3
)
