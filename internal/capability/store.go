package capability

import (
	"context"

	"github.com/muurk/ledble/internal/advertise"
)

// Store persists resolved capabilities per device so probing only has to
// happen once. Implementations live in internal/capstore.
type Store interface {
	// Load returns the cached capabilities for a device, or ErrNotCached.
	Load(ctx context.Context, mac advertise.MAC) (*Capabilities, error)

	// Save writes the capabilities for a device, replacing any prior entry.
	Save(ctx context.Context, mac advertise.MAC, caps *Capabilities) error
}
