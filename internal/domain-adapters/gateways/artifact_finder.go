package gateways

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultArtifactExtensions are the Android package formats a build produces
var DefaultArtifactExtensions = []string{".apk", ".aab"}

// ArtifactFinder locates packages produced by a build
type ArtifactFinder struct {
	extensions []string
}

// NewArtifactFinder creates a finder for the given extensions (DefaultArtifactExtensions when empty)
func NewArtifactFinder(extensions ...string) *ArtifactFinder {
	if len(extensions) == 0 {
		extensions = DefaultArtifactExtensions
	}
	return &ArtifactFinder{extensions: extensions}
}

// FindSince walks artifactsDir and returns packages modified at or after since,
// so that outputs of earlier builds are not reported again
func (f *ArtifactFinder) FindSince(artifactsDir string, since int64) ([]string, error) {
	if _, err := os.Stat(artifactsDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("artifacts directory does not exist: %s", artifactsDir)
	}

	var artifacts []string
	err := filepath.WalkDir(artifactsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !f.matches(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().UnixNano() >= since {
			artifacts = append(artifacts, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(artifacts)
	return artifacts, nil
}

func (f *ArtifactFinder) matches(name string) bool {
	for _, ext := range f.extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
