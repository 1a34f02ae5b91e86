package matching

import "strings"

type Category string

const (
	CategoryGreeting    Category = "greeting"
	CategoryProgramming Category = "programming"
	CategoryHelp        Category = "help"
	CategoryGeneral     Category = "general"
)

type keywordSet struct {
	words   map[string]struct{}
	phrases []string
}

func (k keywordSet) matches(text string, ws []string) bool {
	for _, w := range ws {
		if _, ok := k.words[w]; ok {
			return true
		}
	}
	for _, p := range k.phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// checked in this order; the first hit wins
var categoryRules = []struct {
	category Category
	keywords keywordSet
}{
	{CategoryProgramming, keywordSet{
		words: toSet("code", "javascript", "react", "python", "function", "variable", "debug", "html", "css", "api"),
	}},
	{CategoryGreeting, keywordSet{
		words:   toSet("hello", "hi", "hey"),
		phrases: []string{"good morning", "good afternoon", "good evening"},
	}},
	{CategoryHelp, keywordSet{
		words:   toSet("help", "how", "what", "explain"),
		phrases: []string{"tell me", "show me", "can you", "could you"},
	}},
}

// Classify assigns message to a fixed category by keyword.
func Classify(message string) Category {
	text := Normalize(message)
	ws := words(text)
	for _, rule := range categoryRules {
		if rule.keywords.matches(text, ws) {
			return rule.category
		}
	}
	return CategoryGeneral
}

var fallbackReplies = map[Category]string{
	CategoryGreeting:    "Hello! I'm your learning assistant. Ask me anything, and rate my answers so I can get better.",
	CategoryProgramming: "That sounds like a programming question. I haven't learned a good answer for it yet. Add a training example with the answer you expect and I'll use it next time.",
	CategoryHelp:        "I'd like to help with that. I don't know this topic well yet, so a correction or a training example would teach me.",
	CategoryGeneral:     "I'm still learning about this. Your feedback and training examples help me give better answers.",
}

// FallbackReply returns the canned reply for a category.
func FallbackReply(c Category) string {
	if r, ok := fallbackReplies[c]; ok {
		return r
	}
	return fallbackReplies[CategoryGeneral]
}

const (
	strongPrefix = "Based on what I've learned: "
	softPrefix   = "I'm not completely sure, but this may help: "
)

// ContextualReply prefixes a stored answer according to match strength.
func ContextualReply(m Match) string {
	if m.Strong() {
		return strongPrefix + m.Example.Output
	}
	return softPrefix + m.Example.Output
}
