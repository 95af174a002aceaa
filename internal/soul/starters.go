package soul

import "fmt"

// starterPrompts holds the fixed per-mode set of conversation starters.
var starterPrompts = map[Mode][]string{
	ModeReflect: {
		"What's been sitting with you lately?",
		"What would you like to look at more closely?",
	},
	ModeAdvise: {
		"What decision are you weighing right now?",
		"What outcome are you optimizing for?",
	},
	ModeChallenge: {
		"What belief of yours deserves pressure-testing?",
		"Where are you most likely fooling yourself?",
	},
	ModeExplore: {
		"What's a thread you haven't pulled yet?",
		"What would you explore if nothing were at stake?",
	},
}

// GetStarter returns the first fixed starter prompt for mode.
func GetStarter(mode Mode) string {
	list := starterPrompts[mode]
	if len(list) == 0 {
		return ""
	}
	return list[0]
}

// GetAllStarters returns every fixed starter prompt for mode, in order.
func GetAllStarters(mode Mode) []string {
	list := starterPrompts[mode]
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// FormatStarters renders every starter for mode as a numbered list.
func FormatStarters(mode Mode) string {
	list := starterPrompts[mode]
	out := ""
	for i, s := range list {
		out += fmt.Sprintf("%d. %s\n", i+1, s)
	}
	return out
}
