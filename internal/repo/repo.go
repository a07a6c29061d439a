package repo

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/kokistudios/brancho/internal/store"
	"github.com/kokistudios/brancho/internal/ui"
)

// Git runs git commands inside one working tree.
type Git struct {
	Dir string
}

// New returns a Git bound to dir.
func New(dir string) *Git {
	return &Git{Dir: dir}
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	ui.Logger.Debug("git", "dir", g.Dir, "args", args)

	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", g.Dir}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s failed: %s", args[0], msg)
	}
	return strings.TrimSpace(string(out)), nil
}

// CurrentBranch returns the name of the checked out branch.
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	return g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// CreateBranch creates name from HEAD and checks it out.
func (g *Git) CreateBranch(ctx context.Context, name string) error {
	_, err := g.run(ctx, "checkout", "-b", name)
	return err
}

// Commit records staged changes with message. With all, tracked modified
// files are staged first.
func (g *Git) Commit(ctx context.Context, message string, all bool) error {
	args := []string{"commit", "-m", message}
	if all {
		args = append(args, "-a")
	}
	_, err := g.run(ctx, args...)
	return err
}

// CheckHealth reports whether dir is usable as a git working tree.
func CheckHealth(ctx context.Context, dir string) []store.Issue {
	var issues []store.Issue
	g := New(dir)
	if _, err := g.run(ctx, "rev-parse", "--git-dir"); err != nil {
		issues = append(issues, store.Issue{Severity: "error", Message: fmt.Sprintf("not a git repository: %s", dir)})
		return issues
	}
	if _, err := g.CurrentBranch(ctx); err != nil {
		issues = append(issues, store.Issue{Severity: "warning", Message: fmt.Sprintf("cannot read current branch: %v", err)})
	}
	return issues
}
