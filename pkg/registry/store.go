package registry

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/Mindburn-Labs/docreg/pkg/contracts"
)

// SchemaVersion is written into every persisted registry.
const SchemaVersion = "1.0.0"

// supportedVersions is the range of stored schema versions this build reads.
const supportedVersions = "^1"

// Store persists whole registry snapshots. Implementations replace the full
// snapshot on every Save; there is no partial update.
type Store interface {
	Load(ctx context.Context) (contracts.RegistryFile, error)
	Save(ctx context.Context, snap contracts.RegistryFile) error
	Location() string
}

// checkSchemaVersion accepts an empty version (registries written before
// versioning) and anything inside supportedVersions.
func checkSchemaVersion(v string) error {
	if v == "" {
		return nil
	}
	ver, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrSchemaVersion, v, err)
	}
	c, err := semver.NewConstraint(supportedVersions)
	if err != nil {
		return err
	}
	if !c.Check(ver) {
		return fmt.Errorf("%w: %s does not satisfy %s", ErrSchemaVersion, v, supportedVersions)
	}
	return nil
}
