package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kokistudios/brancho/internal/commit"
	"github.com/kokistudios/brancho/internal/filter"
	"github.com/kokistudios/brancho/internal/jira"
	"github.com/kokistudios/brancho/internal/repo"
	"github.com/kokistudios/brancho/internal/resolver"
	"github.com/kokistudios/brancho/internal/store"
	"github.com/kokistudios/brancho/internal/ui"
)

// Set via ldflags at build time
var (
	version   = "dev"
	commitSHA = "none"
	date      = "unknown"
)

func buildVersion() string {
	if commitSHA == "none" {
		return version
	}
	return fmt.Sprintf("%s (%s, %s)", version, commitSHA, date)
}

// errReported marks a failure whose message was already shown to the operator.
var errReported = errors.New("reported")

// gitWorkTree is the subset of repo.Git the commands drive.
type gitWorkTree interface {
	CurrentBranch(ctx context.Context) (string, error)
	CreateBranch(ctx context.Context, name string) error
	Commit(ctx context.Context, message string, all bool) error
}

// app holds the collaborators shared by every command.
type app struct {
	workDir  string
	tracker  resolver.Tracker
	prompter ui.Prompter
	git      gitWorkTree
}

func newApp(workDir string) *app {
	return &app{
		workDir:  workDir,
		tracker:  jira.NewClient(),
		prompter: ui.Terminal{},
		git:      repo.New(workDir),
	}
}

func main() {
	workDir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot determine working directory: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCmd(newApp(workDir)).Execute(); err != nil {
		if !errors.Is(err, errReported) {
			ui.Error(err.Error())
		}
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	var noColor, verbose bool

	rootCmd := &cobra.Command{
		Use:           "brancho",
		Short:         "Branch names and commit messages from Jira issues",
		Long:          "Derives git branch names and issue-prefixed commit messages from your issue tracker, following the naming rules in .brancho.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.Init(noColor, verbose)
		},
	}

	rootCmd.Version = buildVersion()
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log tracker requests and resolution steps")

	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Core Commands:"},
		&cobra.Group{ID: "config", Title: "Configuration:"},
	)

	branchC := branchCmd(a)
	branchC.GroupID = "core"
	commitC := commitCmd(a)
	commitC.GroupID = "core"

	configC := configCmd(a)
	configC.GroupID = "config"
	authC := authCmd(a)
	authC.GroupID = "config"
	doctorC := doctorCmd(a)
	doctorC.GroupID = "config"

	rootCmd.AddCommand(branchC)
	rootCmd.AddCommand(commitC)
	rootCmd.AddCommand(configC)
	rootCmd.AddCommand(authC)
	rootCmd.AddCommand(doctorC)
	rootCmd.AddCommand(completionCmd())

	return rootCmd
}

func (a *app) configFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", store.DefaultPath(a.workDir), "Path to a configuration file")
}

// loadContext reads the configuration at path and builds the resolution
// context with its filter chain.
func loadContext(path string) (*store.Store, *resolver.Context, error) {
	s, err := store.Load(path)
	if err != nil {
		return nil, nil, err
	}
	chain, err := filter.FromNames(s.Config.Filters())
	if err != nil {
		return nil, nil, fmt.Errorf("invalid filters in %s: %w", path, err)
	}
	return s, resolver.NewContext(s.Config, chain), nil
}

func branchCmd(a *app) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:     "branch [issue]",
		Short:   "Create branches named after an issue",
		Long:    "Resolve branch names for an issue with the configured resolver and offer to create each one.",
		Example: "  brancho branch rk-123\n  brancho branch -c ../shared/.brancho",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, rc, err := loadContext(configPath)
			if err != nil {
				return err
			}
			r, err := resolver.Build(s.Config.Resolver(), resolver.Deps{Tracker: a.tracker, Prompter: a.prompter}, s.Dir())
			if err != nil {
				return err
			}

			var issueKey string
			if len(args) > 0 {
				issueKey = args[0]
			}
			names, err := r.Resolve(cmd.Context(), issueKey, rc)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				ui.Error("No branches to create.")
				return errReported
			}

			for _, name := range names {
				ok, err := ui.AskConfirm(a.prompter, fmt.Sprintf("Should I create the branch %q for you in %q?", name, a.workDir), true)
				if err != nil {
					return err
				}
				if !ok {
					ui.Info(fmt.Sprintf("Branch %s NOT created.", ui.Dim(name)))
					continue
				}
				if err := a.git.CreateBranch(cmd.Context(), name); err != nil {
					return fmt.Errorf("create branch %s: %w", name, err)
				}
				ui.Success(fmt.Sprintf("Branch %s created.", ui.Bold(name)))
			}
			return nil
		},
	}
	a.configFlag(cmd, &configPath)
	return cmd
}

func commitCmd(a *app) *cobra.Command {
	var (
		configPath string
		message    string
		all        bool
	)
	cmd := &cobra.Command{
		Use:     "commit",
		Short:   "Commit with the current issue key as prefix",
		Long:    "Prefix a commit message with the issue key found in the current branch name and commit.",
		Example: "  brancho commit -m \"Fix login\"\n  brancho commit -a",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, rc, err := loadContext(configPath)
			if err != nil {
				return err
			}
			r := &commit.Resolver{Git: a.git, Prompter: a.prompter}
			msg, err := r.Resolve(cmd.Context(), rc, message)
			if err != nil {
				return err
			}
			if msg == "" {
				ui.Error("The resolved commit message is empty, something went wrong.")
				return errReported
			}

			ok, err := ui.AskConfirm(a.prompter, fmt.Sprintf("Should I commit with message %q for you in %q?", msg, a.workDir), true)
			if err != nil {
				return err
			}
			if !ok {
				ui.Info(fmt.Sprintf("Changes %s NOT committed.", ui.Dim(msg)))
				return nil
			}
			if err := a.git.Commit(cmd.Context(), msg, all); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Changes %s committed.", ui.Bold(msg)))
			return nil
		},
	}
	a.configFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&message, "message", "m", "", "Message used for the commit")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Commit all changed files")
	return cmd
}

func configCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View brancho configuration",
	}
	cmd.AddCommand(configShowCmd(a))
	return cmd
}

func configShowCmd(a *app) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration including .brancho.local",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Load(configPath)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(map[string]any(s.Config))
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	a.configFlag(cmd, &configPath)
	return cmd
}

func authCmd(a *app) *cobra.Command {
	var (
		configPath string
		remove     bool
	)
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Store the Jira API token in the OS keyring",
		Long:  "Save the Jira credential for jira.username at jira.host in the OS keyring so it can be left out of .brancho and .brancho.local.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Load(configPath)
			if err != nil {
				return err
			}
			conn := resolver.JiraConnection(s.Config)
			if conn.Host == "" || conn.Username == "" {
				return fmt.Errorf("jira.host and jira.username must be set in %s before running 'brancho auth'", configPath)
			}

			if remove {
				if err := jira.DeleteCredential(conn.Host, conn.Username); err != nil {
					return err
				}
				ui.Success(fmt.Sprintf("Removed credential for %s", conn.Username))
				return nil
			}

			token, err := ui.AskRequired(secretPrompter{a.prompter}, "Please enter your Jira API token", "You need to enter a token.")
			if err != nil {
				return err
			}
			if err := jira.StoreCredential(conn.Host, conn.Username, token); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Stored credential for %s", conn.Username))
			ui.Detail("Host:", conn.Host)
			return nil
		},
	}
	a.configFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&remove, "remove", false, "Delete the stored credential instead")
	return cmd
}

// secretPrompter masks every free-text answer it asks for.
type secretPrompter struct{ ui.Prompter }

func (p secretPrompter) Ask(q ui.Question) (string, error) {
	q.Secret = true
	return p.Prompter.Ask(q)
}

func doctorCmd(a *app) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the configuration and git working tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ui.SectionHeader("DOCTOR")

			issues := store.CheckHealth(configPath)
			if s, err := store.Load(configPath); err == nil {
				issues = append(issues, checkNames(s.Config)...)
			}
			issues = append(issues, repo.CheckHealth(cmd.Context(), a.workDir)...)

			if len(issues) == 0 {
				ui.Success("Everything looks good")
				return nil
			}

			hasError := false
			for _, issue := range issues {
				if issue.Severity == "error" {
					ui.Error(fmt.Sprintf("[ERR]  %s", issue.Message))
					hasError = true
				} else {
					ui.Warning(fmt.Sprintf("[WARN] %s", issue.Message))
				}
			}
			if hasError {
				return errReported
			}
			return nil
		},
	}
	a.configFlag(cmd, &configPath)
	return cmd
}

// checkNames validates the resolver and filter names without building anything
// that could prompt.
func checkNames(cfg store.Config) []store.Issue {
	var issues []store.Issue
	r, err := resolver.New(cfg.Resolver(), resolver.Deps{})
	if err != nil {
		issues = append(issues, store.Issue{Severity: "error", Message: err.Error()})
	} else if c, ok := r.(resolver.Configurable); ok && !c.Configured(resolver.NewContext(cfg, nil)) {
		ns := c.Settings().Namespace
		issues = append(issues, store.Issue{Severity: "warning", Message: fmt.Sprintf("no %s section yet; it will be asked for on the first 'brancho branch'", ns)})
	}
	if _, err := filter.FromNames(cfg.Filters()); err != nil {
		issues = append(issues, store.Issue{Severity: "error", Message: err.Error()})
	}
	return issues
}

func completionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish]",
		Short:     "Generate shell completion scripts",
		Long:      "Generate shell completion scripts for bash, zsh, or fish. Output the script to stdout for sourcing in your shell profile.",
		Example:   "  brancho completion bash > ~/.bashrc.d/brancho\n  brancho completion zsh > ~/.zfunc/_brancho\n  brancho completion fish > ~/.config/fish/completions/brancho.fish",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(cmd.OutOrStdout())
			case "zsh":
				return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
			default:
				return fmt.Errorf("unsupported shell: %s (use bash, zsh, or fish)", args[0])
			}
		},
	}
}
