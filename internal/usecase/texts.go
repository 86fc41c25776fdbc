package usecase

import (
	"fmt"
	"strings"
	"time"
)

const (
	instructionStartQuiz  = "start quiz"
	instructionCancelQuiz = "cancel quiz"
	instructionEnd        = "the_end"

	timestampLayout = "03:04 PM"
)

// Topics are the learning-menu buttons, in display order.
var Topics = []string{
	"Kakapo Diet",
	"Habitat",
	"Conservation",
	"Behaviour",
	"Breeding",
	"Threats",
	"General Facts",
}

// topicQueries rewrites topics whose label makes a poor backend query.
var topicQueries = map[string]string{
	"General Facts": "Tell me some general facts about the kakapo",
}

var quizCompletionIntents = map[string]struct{}{
	"quiz_complete":  {},
	"quiz_completed": {},
	"quiz_end":       {},
	"quiz_finished":  {},
}

const (
	msgLearningActivated = "📚 **Learning mode** activated! Pick a topic below, or ask me anything about Kākāpō. 🦜"
	msgBackToMain        = "🏠 Back to the main menu! What would you like to do next? 🦜"
	msgQuizCancelled     = "❌ Quiz cancelled. No worries, you can try again anytime! 🦜 What would you like to do next?"
)

func topicQuery(topic string) string {
	if q, ok := topicQueries[topic]; ok {
		return q
	}
	return topic
}

func isQuizCompletion(intent string) bool {
	_, ok := quizCompletionIntents[strings.ToLower(strings.TrimSpace(intent))]
	return ok
}

func mentionsQuiz(intent string) bool {
	return strings.Contains(strings.ToLower(intent), "quiz")
}

// timeOfDayGreeting buckets the local hour: [5,12) morning, [12,17)
// afternoon, anything else evening.
func timeOfDayGreeting(t time.Time) string {
	h := t.Hour()
	switch {
	case h >= 5 && h < 12:
		return "Good morning"
	case h >= 12 && h < 17:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}

func newUserGreeting(t time.Time) string {
	return fmt.Sprintf("%s! 🦜 I'm Mosska, a curious Kakapo here to share my world with you! What's your name?", timeOfDayGreeting(t))
}

func returningUserGreeting(t time.Time, name string) string {
	return fmt.Sprintf("%s, %s! 🦜 What can I do for you today?", timeOfDayGreeting(t), name)
}

func personalGreeting(name string) string {
	return fmt.Sprintf("Hello %s! 🦜 What can I do for you today?", name)
}

func topicFollowUps(topic string) []string {
	return []string{
		fmt.Sprintf("🌟 Want to dive deeper into **%s**? Ask me anything! 🦜✨", topic),
		fmt.Sprintf("💚 Curious about more **%s** details? Fire away! 🌿🦜", topic),
		fmt.Sprintf("🦜 Got more questions about **%s**? I'm all ears! 💫", topic),
	}
}

var genericFollowUps = []string{
	"🦜 What else can I help you discover about Kākapos? 🌟",
	"✨ Anything else you'd like to know? I'm here for you! 💚",
	"🌿 Keep the questions coming! What's next? 🦜💫",
	"💚 Fascinated yet? There's so much more to learn! 🦜✨",
}

// plainText strips the lightweight markup before speech or clipboard use.
func plainText(s string) string {
	return strings.NewReplacer("**", "", "*", "").Replace(s)
}
