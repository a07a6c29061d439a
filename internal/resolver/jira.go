package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kokistudios/brancho/internal/filter"
	"github.com/kokistudios/brancho/internal/jira"
	"github.com/kokistudios/brancho/internal/store"
	"github.com/kokistudios/brancho/internal/ui"
)

// JiraNamespace is the config section holding the Jira connection.
const JiraNamespace = "jira"

// maxAncestorHops bounds the parent walk regardless of what the tracker returns.
const maxAncestorHops = 3

const (
	typeBug     = "bug"
	typeEpic    = "epic"
	typeSubTask = "sub-task"
)

// Jira builds branch names from a Jira issue and its ancestors.
type Jira struct {
	Tracker  Tracker
	Prompter ui.Prompter
}

// JiraConnection reads the Jira connection settings from cfg.
func JiraConnection(cfg store.Config) jira.Connection {
	credential := cfg.String(JiraNamespace, "credential")
	if credential == "" {
		credential = cfg.String(JiraNamespace, "password")
	}
	return jira.Connection{
		Host:          cfg.String(JiraNamespace, "host"),
		Username:      cfg.String(JiraNamespace, "username"),
		Credential:    credential,
		EpicLinkField: cfg.String(JiraNamespace, "epic_link_field"),
	}
}

func (j *Jira) Configured(rc *Context) bool {
	return rc.Config.Has(JiraNamespace)
}

func (j *Jira) Settings() Settings {
	return Settings{
		Namespace: JiraNamespace,
		Fields: []Setting{
			{Key: "host", Question: "Please enter the host of your Jira e.g. https://your-company.atlassian.net"},
			{Key: "username", Question: "Please enter your Jira username"},
			{Key: "credential", Question: "Please enter your Jira API token, you can get one here https://id.atlassian.com/manage-profile/security/api-tokens", Secret: true},
			{Key: "epic_link_field", Question: "Please enter the custom field holding the epic link", Default: jira.DefaultEpicLinkField},
		},
	}
}

func (j *Jira) Resolve(ctx context.Context, issueKey string, rc *Context) ([]string, error) {
	issueKey = strings.TrimSpace(issueKey)
	if issueKey == "" {
		var err error
		issueKey, err = ui.AskRequired(j.Prompter, `Please enter the Jira issue number e.g. "rk-123"`, "You need to enter a valid issue number.")
		if err != nil {
			return nil, err
		}
	}

	conn := JiraConnection(rc.Config)
	issue, err := j.Tracker.FetchIssue(ctx, issueKey, conn)
	if err != nil {
		reportFetchError(err)
		return nil, nil
	}

	key := rc.Filter.Filter(issueKey)
	summary := rc.Filter.Filter(issue.Summary)

	switch issueType(issue) {
	case typeBug:
		return []string{fmt.Sprintf("bugfix/%s-%s", key, summary)}, nil
	case typeEpic:
		return j.epicBranchNames(key, summary)
	}

	path := append(j.ancestorKeys(ctx, issueKey, issue, conn, rc.Filter), key)
	return []string{fmt.Sprintf("feature/%s-%s", strings.Join(path, "/"), summary)}, nil
}

func (j *Jira) epicBranchNames(key, summary string) ([]string, error) {
	names := []string{fmt.Sprintf("feature/%s/master-%s", key, summary)}

	dev, err := ui.AskConfirm(j.Prompter, "Should I also create an epic dev branch?", true)
	if err != nil {
		return nil, err
	}
	if dev {
		names = append(names, fmt.Sprintf("feature/%s/dev-%s", key, summary))
	}
	return names, nil
}

// ancestorKeys returns the filtered keys above issue, most distant first.
// One hop is taken; a sub-task whose parent is not an epic takes a second
// one. A missing reference, a failed fetch or a key already seen on the
// chain ends the walk.
func (j *Jira) ancestorKeys(ctx context.Context, issueKey string, issue *jira.Issue, conn jira.Connection, chain *filter.Chain) []string {
	seen := map[string]bool{strings.ToUpper(issueKey): true}
	if issue.Key != "" {
		seen[strings.ToUpper(issue.Key)] = true
	}

	var keys []string
	current := issue
	hops := 1
	for hop := 0; hop < hops && hop < maxAncestorHops; hop++ {
		ref := current.ParentRef()
		if ref == "" || seen[strings.ToUpper(ref)] {
			if hop == 0 {
				ui.Warning("Ticket has no parent or epic branch.")
			}
			if ref != "" {
				ui.Logger.Debug("ignoring cyclic parent reference", "key", ref)
			}
			break
		}
		seen[strings.ToUpper(ref)] = true

		parent, err := j.Tracker.FetchIssue(ctx, ref, conn)
		if err != nil {
			ui.Warning(fmt.Sprintf("Could not fetch parent issue %s: %v", ref, err))
			break
		}
		parentKey := parent.Key
		if parentKey == "" {
			parentKey = ref
		}
		seen[strings.ToUpper(parentKey)] = true
		ui.Logger.Debug("resolved ancestor", "hop", hop+1, "key", parentKey, "type", parent.Type)

		keys = append([]string{chain.Filter(parentKey)}, keys...)

		if hop == 0 && issueType(issue) == typeSubTask && issueType(parent) != typeEpic {
			hops = 2
		}
		current = parent
	}
	return keys
}

// issueType normalizes the tracker's type name so that "Sub-Task",
// "Sub-task" and "Subtask" compare equal.
func issueType(issue *jira.Issue) string {
	t := filter.Slugify(issue.Type)
	if t == "subtask" {
		return typeSubTask
	}
	return t
}

func reportFetchError(err error) {
	var result *jira.ErrorResult
	if errors.As(err, &result) && len(result.Messages) > 0 {
		for _, msg := range result.Messages {
			ui.Error(msg)
		}
		return
	}
	ui.Error(err.Error())
}
