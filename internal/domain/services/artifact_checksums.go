package services

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sbuilder/yessfish-builds/internal/domain/entities"
	"github.com/sbuilder/yessfish-builds/internal/domain/interfaces/gateways"
)

// ArtifactChecksumService writes SHA256 sidecar files next to build outputs
type ArtifactChecksumService struct {
	checksums gateways.ChecksumVerifier
}

// NewArtifactChecksumService creates a new checksum service
func NewArtifactChecksumService(checksums gateways.ChecksumVerifier) *ArtifactChecksumService {
	return &ArtifactChecksumService{checksums: checksums}
}

// GenerateSHA256 writes <file>.sha256 in sha256sum format and returns the artifact
func (s *ArtifactChecksumService) GenerateSHA256(filePath string) (*entities.Artifact, error) {
	hash, err := s.checksums.CalculateChecksum(filePath)
	if err != nil {
		return nil, err
	}

	checksumPath := filePath + ".sha256"
	content := fmt.Sprintf("%s  %s\n", hash, filepath.Base(filePath))
	if err := os.WriteFile(checksumPath, []byte(content), 0600); err != nil {
		return nil, fmt.Errorf("failed to write SHA256 file: %w", err)
	}

	return &entities.Artifact{
		Name:         filepath.Base(filePath),
		Path:         filePath,
		Type:         artifactType(filePath),
		SHA256:       hash,
		ChecksumPath: checksumPath,
	}, nil
}

// GenerateAll writes checksums for every file, stopping at the first failure
func (s *ArtifactChecksumService) GenerateAll(paths []string) ([]entities.Artifact, error) {
	artifacts := make([]entities.Artifact, 0, len(paths))
	for _, p := range paths {
		a, err := s.GenerateSHA256(p)
		if err != nil {
			return artifacts, fmt.Errorf("checksum %s: %w", filepath.Base(p), err)
		}
		artifacts = append(artifacts, *a)
	}
	return artifacts, nil
}

func artifactType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "file"
	}
	return ext[1:]
}
