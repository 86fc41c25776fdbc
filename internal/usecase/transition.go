package usecase

import (
	"fmt"

	"kakapo-chat/internal/domain"
)

// action is a menu-level event.
type action int

const (
	actNameRegistered action = iota
	actLearning
	actQuiz
	actTopic
	actBack
	actCancelQuiz
	actAgain
	actQuizCompleted
)

func (a action) String() string {
	switch a {
	case actNameRegistered:
		return "name_registered"
	case actLearning:
		return "learning"
	case actQuiz:
		return "quiz"
	case actTopic:
		return "topic"
	case actBack:
		return "back"
	case actCancelQuiz:
		return "cancel_quiz"
	case actAgain:
		return "again"
	case actQuizCompleted:
		return "quiz_completed"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// transition is the complete chat-phase edge list. Any pair not listed is
// rejected.
func transition(p domain.Phase, a action) (domain.Phase, bool) {
	switch p.(type) {
	case domain.AwaitingName:
		if a == actNameRegistered {
			return domain.MainMenu{}, true
		}
	case domain.MainMenu:
		switch a {
		case actLearning:
			return domain.LearningMenu{}, true
		case actQuiz:
			return domain.QuizInProgress{}, true
		}
	case domain.LearningMenu:
		switch a {
		case actTopic:
			return domain.LearningMenu{}, true
		case actBack:
			return domain.MainMenu{}, true
		}
	case domain.QuizInProgress:
		switch a {
		case actCancelQuiz:
			return domain.MainMenu{}, true
		case actQuizCompleted:
			return domain.QuizComplete{}, true
		}
	case domain.QuizComplete:
		switch a {
		case actAgain:
			return domain.QuizInProgress{}, true
		case actBack:
			return domain.MainMenu{}, true
		}
	}
	return p, false
}

// Button is a visible menu action.
type Button struct {
	Label  string
	action action
	topic  string
}

const (
	LabelLearning   = "Learning"
	LabelQuiz       = "Quiz"
	LabelBack       = "Back to main"
	LabelCancelQuiz = "Cancel quiz"
	LabelAgain      = "Take another quiz"
)

func buttonsFor(p domain.Phase) []Button {
	switch p.(type) {
	case domain.MainMenu:
		return []Button{
			{Label: LabelLearning, action: actLearning},
			{Label: LabelQuiz, action: actQuiz},
		}
	case domain.LearningMenu:
		out := make([]Button, 0, len(Topics)+1)
		for _, t := range Topics {
			out = append(out, Button{Label: t, action: actTopic, topic: t})
		}
		return append(out, Button{Label: LabelBack, action: actBack})
	case domain.QuizInProgress:
		return []Button{{Label: LabelCancelQuiz, action: actCancelQuiz}}
	case domain.QuizComplete:
		return []Button{
			{Label: LabelAgain, action: actAgain},
			{Label: LabelBack, action: actBack},
		}
	}
	return nil
}
