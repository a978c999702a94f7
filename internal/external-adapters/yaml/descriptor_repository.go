package yaml

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sbuilder/yessfish-builds/internal/domain/entities"
	"github.com/sbuilder/yessfish-builds/internal/domain/interfaces"
	"github.com/sbuilder/yessfish-builds/internal/domain/interfaces/repositories"
)

// DescriptorRepository implements repositories.DescriptorRepository using a directory of YAML files.
// Each file is one descriptor revision; a revision without a name is named after its file.
type DescriptorRepository struct {
	dir    string
	parser *DescriptorParser
	logger interfaces.Logger
}

// NewDescriptorRepository creates a new YAML-based descriptor repository
func NewDescriptorRepository(dir string, parser *DescriptorParser, logger interfaces.Logger) *DescriptorRepository {
	if parser == nil {
		parser = NewDescriptorParser()
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &DescriptorRepository{
		dir:    dir,
		parser: parser,
		logger: logger,
	}
}

// GetDescriptor retrieves a descriptor revision by name
func (r *DescriptorRepository) GetDescriptor(ctx context.Context, name string) (*entities.Descriptor, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return nil, fmt.Errorf("%w: %q", repositories.ErrDescriptorNotFound, name)
	}

	for _, ext := range []string{".yml", ".yaml"} {
		filePath := filepath.Join(r.dir, name+ext)
		if _, err := os.Stat(filePath); err != nil {
			continue
		}
		return r.parse(filePath)
	}

	// Fall back to the name declared inside the file
	all, err := r.ListDescriptors(ctx)
	if err != nil {
		return nil, err
	}
	for _, def := range all {
		if def.Name == name {
			return def, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", repositories.ErrDescriptorNotFound, name)
}

// ListDescriptors returns all descriptor revisions sorted by name
func (r *DescriptorRepository) ListDescriptors(_ context.Context) ([]*entities.Descriptor, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptors directory: %w", err)
	}

	descriptors := make([]*entities.Descriptor, 0)
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}

		def, err := r.parse(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			// Keep going, one broken revision must not hide the others
			r.logger.Warn("skipping unparsable descriptor",
				interfaces.F("file", entry.Name()), interfaces.F("error", err))
			continue
		}
		descriptors = append(descriptors, def)
	}

	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Name < descriptors[j].Name })
	return descriptors, nil
}

func (r *DescriptorRepository) parse(filePath string) (*entities.Descriptor, error) {
	def, err := r.parser.ParseFile(filePath)
	if err != nil {
		return nil, err
	}
	if def.Name == "" {
		base := filepath.Base(filePath)
		def.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return def, nil
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yml") || strings.HasSuffix(name, ".yaml")
}
