package layers

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"
)

// ApplyResult lists what Apply changed, by layer name.
type ApplyResult struct {
	Added     []string
	Removed   []string
	Replaced  []string
	Updated   []string
	Reordered bool
}

// Changed reports whether the collection's structure changed.
func (r ApplyResult) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0 || len(r.Replaced) > 0 || r.Reordered
}

// Apply reconciles the collection with specs, matching layers by name.
// Layers absent from specs are removed, new names are added and the order
// follows specs. A layer whose role, format, dims or transform differ is
// replaced by a new identity; otherwise only its display state is updated.
// Specs are validated up front, so a failed Apply leaves the collection
// untouched. Subscribers see at most one change notification.
func (c *Collection) Apply(specs []Spec) (ApplyResult, error) {
	var result ApplyResult
	if err := validateSpecs(specs); err != nil {
		return result, err
	}

	wanted := make(map[string]struct{}, len(specs))
	for _, s := range specs {
		wanted[s.Name] = struct{}{}
	}

	final := make([]*Layer, 0, len(specs))
	var appearance []func()
	for _, s := range specs {
		existing, ok := c.FindByName(s.Name)
		switch {
		case !ok:
			l, err := New(s)
			if err != nil {
				return ApplyResult{}, err
			}
			final = append(final, l)
			result.Added = append(result.Added, s.Name)
		case !existing.compatible(s):
			l, err := New(s)
			if err != nil {
				return ApplyResult{}, err
			}
			final = append(final, l)
			result.Replaced = append(result.Replaced, s.Name)
		default:
			final = append(final, existing)
			if existing.opacity != s.Opacity || existing.visible == s.Hidden {
				result.Updated = append(result.Updated, s.Name)
				l, spec := existing, s
				appearance = append(appearance, func() {
					l.SetOpacity(spec.Opacity)
					l.SetVisible(!spec.Hidden)
				})
			}
		}
	}
	for _, l := range c.layers {
		if _, ok := wanted[l.name]; !ok {
			result.Removed = append(result.Removed, l.name)
		}
	}
	if len(result.Added) == 0 && len(result.Removed) == 0 && len(result.Replaced) == 0 {
		result.Reordered = !slices.Equal(final, c.layers)
	}

	err := c.Batch(func() error {
		if result.Changed() {
			c.layers = final
			c.dirty = true
		}
		for _, fn := range appearance {
			fn()
		}
		return nil
	})

	log.Debug().
		Strs("added", result.Added).
		Strs("removed", result.Removed).
		Strs("replaced", result.Replaced).
		Strs("updated", result.Updated).
		Bool("reordered", result.Reordered).
		Msg("Layer collection applied")
	return result, err
}

func validateSpecs(specs []Spec) error {
	names := make(map[string]struct{}, len(specs))
	mains := 0
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, dup := names[s.Name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateLayer, s.Name)
		}
		names[s.Name] = struct{}{}
		if s.Role == RoleMain {
			mains++
		}
	}
	if mains > 1 {
		return fmt.Errorf("%w: %d layers declare the main role", ErrMainLayerTaken, mains)
	}
	return nil
}
