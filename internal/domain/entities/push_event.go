package entities

// PushEvent is the subset of a GitHub push payload the build service acts on
type PushEvent struct {
	Ref           string
	After         string
	Deleted       bool
	CommitMessage string
	Pusher        string
	Repository    string
}

// Branch returns the last path segment of the pushed ref
func (e *PushEvent) Branch() string {
	for i := len(e.Ref) - 1; i >= 0; i-- {
		if e.Ref[i] == '/' {
			return e.Ref[i+1:]
		}
	}
	return e.Ref
}

// ShortCommit returns the abbreviated commit SHA
func (e *PushEvent) ShortCommit() string {
	if len(e.After) > 7 {
		return e.After[:7]
	}
	return e.After
}
