// Package roles holds the per-role retrieval and assembly policies. The
// store is built once at startup and read-only afterwards; hot-reload is
// deliberately out of scope.
package roles

import (
	"fmt"
	"sort"

	"github.com/mnemohq/rehydrate/pkg/types"
)

// Default policy values applied to fields left unset in configuration.
const (
	DefaultPinnedCap       = 200
	DefaultAnchorWeight    = 0.10
	DefaultSemanticWeight  = 0.65
	DefaultRecencyWeight   = 0.05
	DefaultKeepPerFile     = 1
	DefaultOverlapFraction = 0.5
)

// Store is an immutable role -> RoleConfig lookup.
type Store struct {
	roles map[string]*types.RoleConfig
}

// NewStore validates the configured roles and builds the lookup.
// Validation failures are configuration errors and abort startup.
func NewStore(configs []types.RoleConfig) (*Store, error) {
	if len(configs) == 0 {
		return nil, types.NewError(types.ErrKindConfig, "no roles configured", nil)
	}

	roles := make(map[string]*types.RoleConfig, len(configs))
	for i := range configs {
		rc := configs[i]
		applyDefaults(&rc)
		if err := rc.Validate(); err != nil {
			return nil, types.NewError(types.ErrKindConfig, "invalid role config", err)
		}
		if _, dup := roles[rc.Role]; dup {
			return nil, types.NewError(types.ErrKindConfig,
				fmt.Sprintf("role %q configured twice", rc.Role), nil)
		}
		roles[rc.Role] = &rc
	}
	return &Store{roles: roles}, nil
}

// Get returns the policy for role. Unknown roles are a fatal
// configuration error, surfaced to the caller immediately.
func (s *Store) Get(role string) (*types.RoleConfig, error) {
	rc, ok := s.roles[role]
	if !ok {
		return nil, types.NewError(types.ErrKindConfig,
			fmt.Sprintf("unknown role %q", role), nil)
	}
	return rc, nil
}

// Roles lists the configured role names, sorted.
func (s *Store) Roles() []string {
	names := make([]string, 0, len(s.roles))
	for name := range s.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func applyDefaults(rc *types.RoleConfig) {
	w := &rc.SlotWeights
	if w.PinnedCap == 0 {
		w.PinnedCap = DefaultPinnedCap
	}
	if w.Anchor == 0 && w.Semantic == 0 && w.Recency == 0 {
		w.Anchor = DefaultAnchorWeight
		w.Semantic = DefaultSemanticWeight
		w.Recency = DefaultRecencyWeight
	}
	if rc.KeepPerFile == 0 {
		rc.KeepPerFile = DefaultKeepPerFile
	}
	if rc.OverlapFraction == 0 {
		rc.OverlapFraction = DefaultOverlapFraction
	}
}
