package upload

import (
	"maps"
	"slices"

	"github.com/code19m/errx"
	"github.com/samber/lo"

	"github.com/rise-and-shine/fileupload/filestore"
)

// Registry maps entity aliases to their coordinators. It is built once at
// startup and read-only afterwards.
type Registry struct {
	coords map[string]*Coordinator
}

// NewRegistry indexes coords by alias. Two coordinators for the same alias
// are a configuration error.
func NewRegistry(coords ...*Coordinator) (*Registry, error) {
	r := &Registry{coords: make(map[string]*Coordinator, len(coords))}
	for _, c := range coords {
		if _, dup := r.coords[c.Alias()]; dup {
			return nil, errx.New(
				"duplicate upload alias",
				errx.WithCode(CodeInvalidConfig),
				errx.WithType(errx.T_Validation),
				errx.WithDetails(errx.D{"alias": c.Alias()}),
			)
		}
		r.coords[c.Alias()] = c
	}
	return r, nil
}

// BuildRegistry resolves every entry of settings and builds one coordinator
// per alias, all sharing store and opts.
func BuildRegistry(
	settings map[string]Settings,
	store filestore.FileStore,
	opts ...CoordinatorOption,
) (*Registry, error) {
	aliases := slices.Sorted(maps.Keys(settings))

	coords := make([]*Coordinator, 0, len(aliases))
	for _, alias := range aliases {
		cfg, err := FromSettings(alias, settings[alias])
		if err != nil {
			return nil, err
		}
		c, err := NewCoordinator(cfg, store, opts...)
		if err != nil {
			return nil, err
		}
		coords = append(coords, c)
	}
	return NewRegistry(coords...)
}

// Lookup returns the coordinator of alias.
func (r *Registry) Lookup(alias string) (*Coordinator, bool) {
	c, ok := r.coords[alias]
	return c, ok
}

// Aliases returns the registered aliases in sorted order.
func (r *Registry) Aliases() []string {
	aliases := lo.Keys(r.coords)
	slices.Sort(aliases)
	return aliases
}
