package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// Question is a single interactive prompt. Exactly one shape applies:
// a yes/no confirmation, a choice among Choices, or free text.
type Question struct {
	Text    string
	Default string
	Choices []string
	Confirm bool
	// Secret hides free-text input as it is typed.
	Secret bool
}

// Prompter asks the operator a question and returns the raw answer.
// Confirmations answer "yes" or "no"; choices answer the chosen text.
type Prompter interface {
	Ask(q Question) (string, error)
}

// ErrNoAnswer is returned by Scripted when it runs out of answers.
var ErrNoAnswer = errors.New("no scripted answer left")

// Terminal prompts on the controlling terminal.
type Terminal struct{}

func (Terminal) Ask(q Question) (string, error) {
	switch {
	case q.Confirm:
		ok, err := confirm(q.Text, !isNo(q.Default))
		if err != nil {
			return "", err
		}
		if ok {
			return "yes", nil
		}
		return "no", nil

	case len(q.Choices) > 0:
		value := q.Default
		err := huh.NewSelect[string]().
			Title(q.Text).
			Options(huh.NewOptions(q.Choices...)...).
			Value(&value).
			Run()
		if err != nil {
			return "", err
		}
		return value, nil

	default:
		var value string
		input := huh.NewInput().Title(q.Text).Value(&value)
		if q.Secret {
			input = input.EchoMode(huh.EchoModePassword)
		}
		if q.Default != "" {
			input = input.Placeholder(q.Default)
		}
		if err := input.Run(); err != nil {
			return "", err
		}
		if strings.TrimSpace(value) == "" {
			return q.Default, nil
		}
		return value, nil
	}
}

// Scripted replays canned answers in order. An empty answer falls back to the
// question's default, the way pressing enter does on a terminal.
type Scripted struct {
	Answers []string
	Asked   []Question
}

func (s *Scripted) Ask(q Question) (string, error) {
	s.Asked = append(s.Asked, q)
	if len(s.Answers) == 0 {
		return "", fmt.Errorf("%w for %q", ErrNoAnswer, q.Text)
	}
	answer := s.Answers[0]
	s.Answers = s.Answers[1:]
	if answer == "" {
		answer = q.Default
	}
	return answer, nil
}

// AskConfirm asks a yes/no question. An empty answer takes the default.
func AskConfirm(p Prompter, text string, defaultYes bool) (bool, error) {
	def := "no"
	if defaultYes {
		def = "yes"
	}
	answer, err := p.Ask(Question{Text: text, Default: def, Confirm: true})
	if err != nil {
		return false, err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return defaultYes, nil
	}
	return !isNo(answer), nil
}

// AskRequired asks for free text until a non-blank answer is given,
// printing invalid after every blank one.
func AskRequired(p Prompter, text, invalid string) (string, error) {
	for {
		answer, err := p.Ask(Question{Text: text})
		if err != nil {
			return "", err
		}
		if answer = strings.TrimSpace(answer); answer != "" {
			return answer, nil
		}
		if invalid != "" {
			Error(invalid)
		}
	}
}

func isNo(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "n", "no", "false":
		return true
	}
	return false
}
