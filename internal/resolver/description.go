package resolver

import (
	"context"

	"github.com/kokistudios/brancho/internal/ui"
)

// Description names the branch after free text typed by the operator.
type Description struct {
	Prompter ui.Prompter
}

func (d *Description) Resolve(ctx context.Context, _ string, rc *Context) ([]string, error) {
	text, err := ui.AskRequired(d.Prompter, "Please enter the description text to be used", "You need to enter a description.")
	if err != nil {
		return nil, err
	}
	name := rc.Filter.Filter(text)
	if name == "" {
		return nil, nil
	}
	return []string{name}, nil
}
