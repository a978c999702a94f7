// Package repositories defines interfaces for data access layers.
package repositories

import (
	"context"
	"errors"

	"github.com/sbuilder/yessfish-builds/internal/domain/entities"
)

// ErrDescriptorNotFound is returned when no descriptor revision has the requested name
var ErrDescriptorNotFound = errors.New("descriptor not found")

// DescriptorRepository defines the interface for accessing build descriptors
type DescriptorRepository interface {
	// GetDescriptor retrieves a descriptor revision by name
	GetDescriptor(ctx context.Context, name string) (*entities.Descriptor, error)

	// ListDescriptors returns all available descriptor revisions
	ListDescriptors(ctx context.Context) ([]*entities.Descriptor, error)
}
