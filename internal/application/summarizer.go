package application

import (
	"encoding/json"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v82/github"
)

// maxTitleLen bounds PR/issue titles and comment excerpts in summaries.
const maxTitleLen = 55

// eventEnvelope holds the fields common to every GitHub webhook payload
// that the digest and router need without full typed decoding.
type eventEnvelope struct {
	Action string `json:"action"`
	Sender struct {
		Login string `json:"login"`
	} `json:"sender"`
	Repository struct {
		FullName string `json:"full_name"`
		HTMLURL  string `json:"html_url"`
	} `json:"repository"`
}

// parseEnvelope extracts the common payload fields. A malformed payload
// yields a zero envelope rather than an error.
func parseEnvelope(payload []byte) eventEnvelope {
	var env eventEnvelope
	_ = json.Unmarshal(payload, &env)
	return env
}

// Summarize maps an event payload to a one-line human-readable summary and
// the most relevant canonical GitHub URL. It never fails: a malformed or
// unrecognized payload degrades to the bare event type with no link, since
// this sits on the hot path of every accepted webhook.
//
// Payloads are decoded into go-github's typed event structs and read
// through their nil-safe GetXxx accessors, so missing fields produce empty
// strings instead of panics.
func Summarize(eventType string, payload []byte) (text, link string) {
	switch eventType {
	case "push":
		var ev gh.PushEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			break
		}
		branch := strings.TrimPrefix(ev.GetRef(), "refs/heads/")
		actor := ev.GetSender().GetLogin()
		if actor == "" {
			actor = ev.GetPusher().GetName()
		}
		n := len(ev.Commits)
		return fmt.Sprintf("%s pushed %d %s to %s", actor, n, plural(n, "commit"), branch), ev.GetCompare()

	case "pull_request":
		var ev gh.PullRequestEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			break
		}
		pr := ev.GetPullRequest()
		return fmt.Sprintf("%s %s PR #%d: %s",
			ev.GetSender().GetLogin(), ev.GetAction(), pr.GetNumber(), truncate(pr.GetTitle())), pr.GetHTMLURL()

	case "issues":
		var ev gh.IssuesEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			break
		}
		issue := ev.GetIssue()
		return fmt.Sprintf("%s %s issue #%d: %s",
			ev.GetSender().GetLogin(), ev.GetAction(), issue.GetNumber(), truncate(issue.GetTitle())), issue.GetHTMLURL()

	case "issue_comment":
		var ev gh.IssueCommentEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			break
		}
		return fmt.Sprintf("%s commented on #%d: %s",
			ev.GetSender().GetLogin(), ev.GetIssue().GetNumber(), truncate(ev.GetComment().GetBody())), ev.GetComment().GetHTMLURL()

	case "pull_request_review":
		var ev gh.PullRequestReviewEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			break
		}
		return fmt.Sprintf("%s reviewed PR #%d: %s",
			ev.GetSender().GetLogin(), ev.GetPullRequest().GetNumber(), ev.GetReview().GetState()), ev.GetReview().GetHTMLURL()

	case "release":
		var ev gh.ReleaseEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			break
		}
		return fmt.Sprintf("%s %s release %s",
			ev.GetSender().GetLogin(), ev.GetAction(), ev.GetRelease().GetTagName()), ev.GetRelease().GetHTMLURL()

	case "star":
		var ev gh.StarEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			break
		}
		verb := "starred"
		if ev.GetAction() == "deleted" {
			verb = "unstarred"
		}
		repo := ev.GetRepo()
		return fmt.Sprintf("%s %s the repo (%d stars)",
			ev.GetSender().GetLogin(), verb, repo.GetStargazersCount()), repo.GetHTMLURL()

	case "fork":
		var ev gh.ForkEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			break
		}
		return fmt.Sprintf("%s forked the repo to %s",
			ev.GetSender().GetLogin(), ev.GetForkee().GetFullName()), ev.GetForkee().GetHTMLURL()

	case "create":
		var ev gh.CreateEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			break
		}
		return fmt.Sprintf("%s created %s %s",
			ev.GetSender().GetLogin(), ev.GetRefType(), ev.GetRef()), ev.GetRepo().GetHTMLURL()

	case "delete":
		var ev gh.DeleteEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			break
		}
		return fmt.Sprintf("%s deleted %s %s",
			ev.GetSender().GetLogin(), ev.GetRefType(), ev.GetRef()), ev.GetRepo().GetHTMLURL()

	case "workflow_run":
		var ev gh.WorkflowRunEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			break
		}
		run := ev.GetWorkflowRun()
		result := run.GetConclusion()
		if result == "" {
			result = ev.GetAction()
		}
		return fmt.Sprintf("workflow %s: %s on %s",
			ev.GetWorkflow().GetName(), result, run.GetHeadBranch()), run.GetHTMLURL()

	case "check_run":
		var ev gh.CheckRunEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			break
		}
		run := ev.GetCheckRun()
		result := run.GetConclusion()
		if result == "" {
			result = ev.GetAction()
		}
		return fmt.Sprintf("check %s: %s", run.GetName(), result), run.GetHTMLURL()

	case "deployment_status":
		var ev gh.DeploymentStatusEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			break
		}
		status := ev.GetDeploymentStatus()
		link := status.GetTargetURL()
		if link == "" {
			link = ev.GetRepo().GetHTMLURL()
		}
		return fmt.Sprintf("deployment to %s: %s",
			ev.GetDeployment().GetEnvironment(), status.GetState()), link

	default:
		env := parseEnvelope(payload)
		text := eventType
		if env.Action != "" {
			text = fmt.Sprintf("%s (%s)", eventType, env.Action)
		}
		return text, env.Repository.HTMLURL
	}

	// Unmarshal failed for a known type: minimal fallback.
	return eventType, ""
}

// truncate bounds s to maxTitleLen runes, collapsing embedded newlines to
// spaces and marking the cut with an ellipsis.
func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxTitleLen {
		return s
	}
	return string(runes[:maxTitleLen]) + "..."
}

// plural returns the singular or trivially pluralized form of word for n.
func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
