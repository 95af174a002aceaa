package soul

import (
	"math/rand"
	"strings"
)

// greetingSets selects a greeting sub-list by presence of "morning" /
// "evening" in the input, else the generic set, grounded on the teacher's
// pattern-keyed canned replies (core/llm/simple_fallback_provider.go,
// deleted after this extraction).
var greetingSets = map[string][]string{
	"morning": {
		"Good morning. What's alive for you today?",
		"Morning. Where should we start?",
	},
	"evening": {
		"Good evening. How did the day land?",
		"Evening. What's on your mind?",
	},
	"generic": {
		"Hello. What's on your mind?",
		"Hi there. What are you working on?",
	},
}

var greetingWords = map[string]bool{
	"hi": true, "hello": true, "hey": true, "greetings": true, "yo": true,
}

var sessionTerms = map[string]bool{
	"save": true, "done": true, "bye": true, "thanks": true, "thank you": true,
	"goodbye": true, "exit": true, "quit": true,
}

// shortInputReplies holds per-mode canned acknowledgements for short
// inputs, used when the active mode implies a short acknowledgement or
// challenge prompt.
var shortInputReplies = map[Mode][]string{
	ModeReflect:  {"Noted. Sitting with that.", "Okay. Let that settle."},
	ModeAdvise:   {"Understood. What outcome matters most here?", "Got it. What's the constraint?"},
	ModeChallenge: {"Is that actually true, or just comfortable?", "What would change your mind?"},
	ModeExplore:  {"Interesting. Say more?", "What's underneath that?"},
}

// rng is package-level so tests can seed it deterministically via
// SetRandSource; production code never needs to.
var rng = rand.New(rand.NewSource(1))

// SetRandSource overrides the source used to pick among canned replies.
// Exposed for deterministic tests.
func SetRandSource(r *rand.Rand) { rng = r }

// TryReply attempts a no-generator reply for input under activeMode. It
// returns ("", false) when no canned pattern matches. Empty/whitespace
// input is never handled here — that short-circuit belongs to the caller
// (the Soul Engine's dialogue entry point).
func TryReply(input string, activeMode Mode) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}

	lower := strings.ToLower(trimmed)
	words := strings.Fields(lower)
	wordSet := make(map[string]bool, len(words))
	for _, w := range words {
		wordSet[w] = true
	}

	for w := range wordSet {
		if greetingWords[w] {
			return pickGreeting(lower), true
		}
	}
	if sessionTerms[lower] {
		return sessionReply(lower), true
	}

	if len(trimmed) < 20 {
		if replies, ok := shortInputReplies[activeMode]; ok {
			return replies[rng.Intn(len(replies))], true
		}
	}

	return "", false
}

func pickGreeting(lower string) string {
	var set []string
	switch {
	case strings.Contains(lower, "morning"):
		set = greetingSets["morning"]
	case strings.Contains(lower, "evening"):
		set = greetingSets["evening"]
	default:
		set = greetingSets["generic"]
	}
	return set[rng.Intn(len(set))]
}

func sessionReply(term string) string {
	switch term {
	case "bye", "goodbye", "exit", "quit":
		return "Take care."
	case "thanks", "thank you":
		return "Any time."
	default:
		return "Saved. Catch you later."
	}
}
