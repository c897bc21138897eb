// Package github implements the GitHub integrations: the webhook receiver
// and the git.io URL shortener.
package github

import (
	"context"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v81/github"

	"github.com/notifico/notifico/internal/message"
	"github.com/notifico/notifico/internal/services"
)

// ServiceID is the registry id of the GitHub hook receiver.
const ServiceID = 10

const (
	eventTypeHeader    = "X-GitHub-Event"
	sha1SignatureHdr   = "X-Hub-Signature"
	sha256SignatureHdr = "X-Hub-Signature-256"
)

// ShortenFunc shortens a URL best-effort, returning it unchanged on failure.
type ShortenFunc func(ctx context.Context, raw string) string

// Service receives GitHub webhook deliveries and normalizes them into
// notification events.
type Service struct {
	services.Base
	shorten ShortenFunc
}

// NewService builds the GitHub receiver. shorten is applied to compare and
// HTML URLs before they land in a message; nil disables shortening.
func NewService(shorten ShortenFunc) *Service {
	if shorten == nil {
		shorten = func(_ context.Context, raw string) string { return raw }
	}
	return &Service{
		Base: services.Base{
			ServiceID:   ServiceID,
			ServiceName: "GitHub",
			ServiceSlug: "github",
			ServiceDesc: "Receives GitHub webhooks for pushes, issues, pull requests and releases.",
			Schema: services.Schema{
				{Name: "secret", Type: services.FieldString, Help: "Webhook secret used to verify X-Hub-Signature-256."},
				{Name: "branches", Type: services.FieldString, Help: "Comma-separated branch allowlist for push events. Empty allows all."},
			},
		},
		shorten: shorten,
	}
}

// HandleRequest parses a GitHub webhook delivery. Ping deliveries and event
// types without a message mapping are ignored.
func (s *Service) HandleRequest(ctx context.Context, hook services.HookInfo, req *services.Request) (*message.Event, error) {
	cfg, err := s.UnpackConfig(hook.Config)
	if err != nil {
		return nil, services.MalformedPayload(err)
	}

	if secret, _ := cfg["secret"].(string); secret != "" {
		signature := req.Header.Get(sha256SignatureHdr)
		if signature == "" {
			signature = req.Header.Get(sha1SignatureHdr)
		}
		if err := gh.ValidateSignature(signature, req.Body, []byte(secret)); err != nil {
			return nil, services.MalformedPayload(fmt.Errorf("signature validation: %w", err))
		}
	}

	eventType := req.Header.Get(eventTypeHeader)
	if eventType == "" {
		return nil, services.MalformedPayload(fmt.Errorf("missing %s header", eventTypeHeader))
	}

	payload, err := gh.ParseWebHook(eventType, req.Body)
	if err != nil {
		return nil, services.MalformedPayload(err)
	}

	switch event := payload.(type) {
	case *gh.PingEvent:
		return nil, nil
	case *gh.PushEvent:
		return s.pushMessage(ctx, cfg, event), nil
	case *gh.IssuesEvent:
		return s.issuesMessage(ctx, event), nil
	case *gh.PullRequestEvent:
		return s.pullRequestMessage(ctx, event), nil
	case *gh.ReleaseEvent:
		return s.releaseMessage(ctx, event), nil
	default:
		// A valid delivery we have no message mapping for.
		return nil, nil
	}
}

func (s *Service) pushMessage(ctx context.Context, cfg map[string]any, event *gh.PushEvent) *message.Event {
	branch := strings.TrimPrefix(event.GetRef(), "refs/heads/")
	if !branchAllowed(cfg, branch) {
		return nil
	}

	repo := event.GetRepo().GetFullName()
	pusher := event.GetPusher().GetName()
	if pusher == "" {
		pusher = event.GetSender().GetLogin()
	}
	text := fmt.Sprintf("%s pushed %d commit(s) to %s/%s", pusher, len(event.Commits), repo, branch)
	evt := message.New(s.Slug(), text).
		WithDetail("repository", repo).
		WithDetail("branch", branch).
		WithDetail("pusher", pusher).
		WithDetail("url", s.shorten(ctx, event.GetCompare()))
	if len(event.Commits) > 0 {
		evt.WithDetail("head", firstLine(event.Commits[len(event.Commits)-1].GetMessage()))
	}
	return evt
}

func (s *Service) issuesMessage(ctx context.Context, event *gh.IssuesEvent) *message.Event {
	switch event.GetAction() {
	case "opened", "closed", "reopened":
	default:
		return nil
	}
	repo := event.GetRepo().GetFullName()
	issue := event.GetIssue()
	text := fmt.Sprintf("%s %s issue #%d in %s: %s",
		event.GetSender().GetLogin(), event.GetAction(), issue.GetNumber(), repo, issue.GetTitle())
	return message.New(s.Slug(), text).
		WithDetail("repository", repo).
		WithDetail("action", event.GetAction()).
		WithDetail("url", s.shorten(ctx, issue.GetHTMLURL()))
}

func (s *Service) pullRequestMessage(ctx context.Context, event *gh.PullRequestEvent) *message.Event {
	action := event.GetAction()
	if action == "closed" && event.GetPullRequest().GetMerged() {
		action = "merged"
	}
	switch action {
	case "opened", "closed", "merged", "reopened":
	default:
		return nil
	}
	repo := event.GetRepo().GetFullName()
	pr := event.GetPullRequest()
	text := fmt.Sprintf("%s %s pull request #%d in %s: %s",
		event.GetSender().GetLogin(), action, event.GetNumber(), repo, pr.GetTitle())
	return message.New(s.Slug(), text).
		WithDetail("repository", repo).
		WithDetail("action", action).
		WithDetail("url", s.shorten(ctx, pr.GetHTMLURL()))
}

func (s *Service) releaseMessage(ctx context.Context, event *gh.ReleaseEvent) *message.Event {
	if event.GetAction() != "published" {
		return nil
	}
	repo := event.GetRepo().GetFullName()
	release := event.GetRelease()
	tag := release.GetTagName()
	if tag == "" {
		tag = "latest"
	}
	text := fmt.Sprintf("%s released %s of %s", event.GetSender().GetLogin(), tag, repo)
	return message.New(s.Slug(), text).
		WithDetail("repository", repo).
		WithDetail("tag", tag).
		WithDetail("url", s.shorten(ctx, release.GetHTMLURL()))
}

func branchAllowed(cfg map[string]any, branch string) bool {
	raw, _ := cfg["branches"].(string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return true
	}
	for _, allowed := range strings.Split(raw, ",") {
		if strings.TrimSpace(allowed) == branch {
			return true
		}
	}
	return false
}

func firstLine(value string) string {
	if idx := strings.IndexByte(value, '\n'); idx >= 0 {
		value = value[:idx]
	}
	return strings.TrimSpace(value)
}
