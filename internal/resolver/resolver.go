// Package resolver turns an issue reference into branch-name candidates.
package resolver

import (
	"context"
	"fmt"

	"github.com/kokistudios/brancho/internal/filter"
	"github.com/kokistudios/brancho/internal/jira"
	"github.com/kokistudios/brancho/internal/store"
	"github.com/kokistudios/brancho/internal/ui"
)

// Context carries the merged configuration and the active filter chain
// through one resolution.
type Context struct {
	Config store.Config
	Filter *filter.Chain
}

// NewContext returns a Context over cfg. A nil chain is the identity.
func NewContext(cfg store.Config, chain *filter.Chain) *Context {
	if cfg == nil {
		cfg = store.Config{}
	}
	if chain == nil {
		chain = filter.NewChain()
	}
	return &Context{Config: cfg, Filter: chain}
}

// SetSection injects a resolver section discovered at runtime.
func (c *Context) SetSection(name string, section map[string]any) {
	c.Config = c.Config.Merge(store.Config{name: section})
}

// Resolver produces ordered branch-name candidates for an issue. A nil
// result with a nil error means there is nothing to create.
type Resolver interface {
	Resolve(ctx context.Context, issueKey string, rc *Context) ([]string, error)
}

// Setting is one value a configurable resolver needs from the operator.
type Setting struct {
	Key      string
	Question string
	Default  string
	Secret   bool
}

// Settings names the config section a resolver reads and the ordered values
// it holds.
type Settings struct {
	Namespace string
	Fields    []Setting
}

// Configurable is a Resolver that depends on its own config section.
type Configurable interface {
	Resolver
	Configured(rc *Context) bool
	Settings() Settings
}

// Tracker fetches issues from the ticket tracker.
type Tracker interface {
	FetchIssue(ctx context.Context, key string, conn jira.Connection) (*jira.Issue, error)
}

// Deps are the collaborators a resolver may need.
type Deps struct {
	Tracker  Tracker
	Prompter ui.Prompter
}

// New returns the resolver registered under name.
func New(name string, deps Deps) (Resolver, error) {
	switch name {
	case "jira", `Brancho\Resolver\JiraResolver`:
		return &Jira{Tracker: deps.Tracker, Prompter: deps.Prompter}, nil
	case "description", `Brancho\Resolver\DescriptionResolver`:
		return &Description{Prompter: deps.Prompter}, nil
	case "":
		return nil, fmt.Errorf("no resolver configured (set '%s' to jira or description)", store.KeyResolver)
	default:
		return nil, fmt.Errorf("unknown resolver: %s (valid: jira, description)", name)
	}
}

// Build returns the resolver registered under name, wrapped so that missing
// settings are collected and saved next to the configuration in dir.
func Build(name string, deps Deps, dir string) (Resolver, error) {
	r, err := New(name, deps)
	if err != nil {
		return nil, err
	}
	if c, ok := r.(Configurable); ok {
		return &Configuring{Resolver: c, Prompter: deps.Prompter, Dir: dir}, nil
	}
	return r, nil
}
