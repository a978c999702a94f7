package services

import (
	"fmt"

	"github.com/sbuilder/yessfish-builds/internal/domain/entities"
)

// DefaultBranch is the branch whose pushes trigger builds
const DefaultBranch = "main"

// PushDecision is the outcome of evaluating a push event
type PushDecision struct {
	Trigger bool
	Reason  string
	Request entities.BuildRequest
}

// PushPolicy decides which pushes start a build
type PushPolicy struct {
	ref string
}

// NewPushPolicy creates a policy that triggers on pushes to branch
func NewPushPolicy(branch string) *PushPolicy {
	if branch == "" {
		branch = DefaultBranch
	}
	return &PushPolicy{ref: "refs/heads/" + branch}
}

// Evaluate maps a push event to a build request, or explains why it is ignored
func (p *PushPolicy) Evaluate(evt *entities.PushEvent) PushDecision {
	if evt.Ref != p.ref {
		ref := evt.Ref
		if ref == "" {
			ref = "unknown ref"
		}
		return PushDecision{Reason: fmt.Sprintf("ignoring push to %s", ref)}
	}
	if evt.Deleted {
		return PushDecision{Reason: fmt.Sprintf("ignoring deletion of %s", evt.Ref)}
	}
	if evt.After == "" {
		return PushDecision{Reason: "push has no head commit"}
	}

	message := evt.CommitMessage
	if message == "" {
		message = "No message"
	}
	pusher := evt.Pusher
	if pusher == "" {
		pusher = "Unknown"
	}

	return PushDecision{
		Trigger: true,
		Request: entities.BuildRequest{
			Branch:    evt.Branch(),
			Commit:    evt.ShortCommit(),
			Pusher:    pusher,
			Message:   message,
			BuildType: entities.ReleaseBuildType,
		},
	}
}
