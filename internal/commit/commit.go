// Package commit builds commit messages prefixed with the issue key found in
// the current branch name.
package commit

import (
	"context"
	"regexp"
	"strings"

	"github.com/kokistudios/brancho/internal/resolver"
	"github.com/kokistudios/brancho/internal/ui"
)

// WriteOwn is the choice that switches to a free-text message.
const WriteOwn = "write own"

var issueKeyPattern = regexp.MustCompile(`[a-z]+-[0-9]+`)

// BranchReader reports the checked-out branch.
type BranchReader interface {
	CurrentBranch(ctx context.Context) (string, error)
}

// Resolver turns the current branch and a message into "<KEY> <message>.".
type Resolver struct {
	Git      BranchReader
	Prompter ui.Prompter
}

// IssueKey returns the last issue key in branch, upper-cased, or "" when the
// branch carries none.
func IssueKey(branch string) string {
	matches := issueKeyPattern.FindAllString(branch, -1)
	if len(matches) == 0 {
		return ""
	}
	return strings.ToUpper(matches[len(matches)-1])
}

// Resolve returns the commit message for the current branch. An empty
// message is asked for. The result is "" when the branch has no issue key.
func (r *Resolver) Resolve(ctx context.Context, rc *resolver.Context, message string) (string, error) {
	branch, err := r.Git.CurrentBranch(ctx)
	if err != nil {
		return "", err
	}
	key := IssueKey(branch)
	if key == "" {
		ui.Logger.Debug("no issue key in branch", "branch", branch)
		return "", nil
	}

	message = strings.TrimSpace(message)
	if message == "" {
		if message, err = r.ask(rc); err != nil {
			return "", err
		}
	}
	return key + " " + strings.TrimRight(message, ".") + ".", nil
}

func (r *Resolver) ask(rc *resolver.Context) (string, error) {
	choices := append(rc.Config.CommitMessages(), WriteOwn)
	choice, err := r.Prompter.Ask(ui.Question{
		Text:    "Please select a commit message",
		Default: WriteOwn,
		Choices: choices,
	})
	if err != nil {
		return "", err
	}
	if choice = strings.TrimSpace(choice); choice != "" && choice != WriteOwn {
		return choice, nil
	}
	return ui.AskRequired(r.Prompter, "Please enter the commit message", "You need to enter a commit message.")
}
