package resolver

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kokistudios/brancho/internal/store"
	"github.com/kokistudios/brancho/internal/ui"
)

// Configuring wraps a Configurable resolver. When the context lacks the
// resolver's section it asks for every setting, saves the answers to the
// local override in Dir and only then delegates.
type Configuring struct {
	Resolver Configurable
	Prompter ui.Prompter
	Dir      string
}

func (c *Configuring) Resolve(ctx context.Context, issueKey string, rc *Context) ([]string, error) {
	if !c.Resolver.Configured(rc) {
		settings := c.Resolver.Settings()
		section, err := c.collect(settings)
		if err != nil {
			return nil, err
		}
		if err := store.WriteLocal(c.Dir, store.Config{settings.Namespace: section}); err != nil {
			return nil, err
		}
		rc.SetSection(settings.Namespace, section)
		ui.Success(fmt.Sprintf("Saved %s settings to %s", settings.Namespace, filepath.Join(c.Dir, store.LocalFilename)))
	}
	return c.Resolver.Resolve(ctx, issueKey, rc)
}

func (c *Configuring) collect(settings Settings) (map[string]any, error) {
	section := make(map[string]any, len(settings.Fields))
	for _, s := range settings.Fields {
		answer, err := c.Prompter.Ask(ui.Question{Text: s.Question, Default: s.Default, Secret: s.Secret})
		if err != nil {
			return nil, fmt.Errorf("collect %s.%s: %w", settings.Namespace, s.Key, err)
		}
		section[s.Key] = answer
	}
	return section, nil
}
