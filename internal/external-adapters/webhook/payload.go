// Package webhook serves the push webhook that triggers Android builds.
package webhook

import (
	"errors"

	"github.com/tidwall/gjson"

	"github.com/sbuilder/yessfish-builds/internal/domain/entities"
)

// ErrInvalidPayload is returned for bodies that are not a JSON object
var ErrInvalidPayload = errors.New("invalid JSON payload")

// ParsePushEvent extracts the fields the build service needs from a push payload
func ParsePushEvent(body []byte) (*entities.PushEvent, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidPayload
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, ErrInvalidPayload
	}

	// head_commit is present on every push; commits[0] is what older payloads carried
	message := doc.Get("commits.0.message").String()
	if message == "" {
		message = doc.Get("head_commit.message").String()
	}

	return &entities.PushEvent{
		Ref:           doc.Get("ref").String(),
		After:         doc.Get("after").String(),
		Deleted:       doc.Get("deleted").Bool(),
		CommitMessage: message,
		Pusher:        doc.Get("pusher.name").String(),
		Repository:    doc.Get("repository.full_name").String(),
	}, nil
}
