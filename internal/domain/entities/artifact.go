package entities

// Artifact represents a package produced by a build
type Artifact struct {
	Name         string
	Path         string
	Type         string // "apk" or "aab"
	SHA256       string
	ChecksumPath string
}
