// Package registry maps rule function names to quality and fill implementations.
package registry

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/huangsam/strata/schema"
)

// QualityInput is what a quality function sees for one rule.
type QualityInput struct {
	Series schema.Series  // full series, in its state after earlier rules
	Window []int          // positions of Series inside the rule window
	Args   []string       // positional arguments; key=value entries live in Kwargs
	Kwargs map[string]any // keyword arguments

	// Peer returns another variable of the same input table.
	Peer func(varname string) (schema.Series, bool)
}

// QualityOutput is the result of a quality function.
// Flagged is aligned to QualityInput.Window.
// Values, when set, replaces the whole series (transform functions).
type QualityOutput struct {
	Flagged []bool
	Values  []float64
}

// QualityFunc checks a series and reports which windowed points are flagged.
type QualityFunc func(in QualityInput) (QualityOutput, error)

// FillInput is what a fill function sees for one rule.
type FillInput struct {
	Fit    schema.Series  // source series restricted to the fit window
	Target schema.Series  // series being filled, as it entered the stage
	Gaps   []time.Time    // timestamps that still need a value
	Kwargs map[string]any // keyword arguments
}

// FillFunc returns values for some or all of the gap timestamps.
type FillFunc func(in FillInput) ([]schema.Point, error)

// ArgCheck validates rule arguments when rules are loaded.
type ArgCheck func(args []string, kwargs map[string]any) error

// QualityFunction is a registered quality function.
type QualityFunction struct {
	Name        string
	Apply       QualityFunc
	Check       ArgCheck
	Masks       bool
	Description string
}

// FillFunction is a registered fill function.
type FillFunction struct {
	Name        string
	Apply       FillFunc
	Check       ArgCheck
	Description string
}

// Option configures a function at registration.
type Option func(*options)

type options struct {
	check       ArgCheck
	noMask      bool
	description string
}

// WithArgCheck validates arguments at rule-load time.
func WithArgCheck(check ArgCheck) Option {
	return func(o *options) { o.check = check }
}

// WithoutMask marks a quality function as a transform: flags are recorded
// but flagged values are left in place.
func WithoutMask() Option {
	return func(o *options) { o.noMask = true }
}

// WithDescription attaches a human readable description.
func WithDescription(desc string) Option {
	return func(o *options) { o.description = desc }
}

// Registry holds named quality and fill functions.
// Registration is safe for concurrent use; lookups after load are read-only.
type Registry struct {
	mu      sync.RWMutex
	quality map[string]QualityFunction
	fill    map[string]FillFunction
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		quality: make(map[string]QualityFunction),
		fill:    make(map[string]FillFunction),
	}
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// RegisterQuality adds or overwrites a quality function.
func (r *Registry) RegisterQuality(name string, fn QualityFunc, opts ...Option) {
	if name == "" || fn == nil {
		panic(fmt.Sprintf("registry: invalid quality function %q", name))
	}
	o := collect(opts)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quality[name] = QualityFunction{
		Name:        name,
		Apply:       fn,
		Check:       o.check,
		Masks:       !o.noMask,
		Description: o.description,
	}
}

// RegisterFill adds or overwrites a fill function.
func (r *Registry) RegisterFill(name string, fn FillFunc, opts ...Option) {
	if name == "" || fn == nil {
		panic(fmt.Sprintf("registry: invalid fill function %q", name))
	}
	o := collect(opts)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fill[name] = FillFunction{
		Name:        name,
		Apply:       fn,
		Check:       o.check,
		Description: o.description,
	}
}

// ResolveQuality returns the named quality function or an UnknownFunctionError.
func (r *Registry) ResolveQuality(name string) (QualityFunction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.quality[name]
	if !ok {
		return QualityFunction{}, &schema.UnknownFunctionError{Kind: schema.QualityFunc, Name: name}
	}
	return fn, nil
}

// ResolveFill returns the named fill function or an UnknownFunctionError.
func (r *Registry) ResolveFill(name string) (FillFunction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fill[name]
	if !ok {
		return FillFunction{}, &schema.UnknownFunctionError{Kind: schema.FillFunc, Name: name}
	}
	return fn, nil
}

// Functions lists every registered function, quality first, each family sorted by name.
func (r *Registry) Functions() []schema.FunctionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schema.FunctionInfo, 0, len(r.quality)+len(r.fill))
	for _, fn := range r.quality {
		out = append(out, schema.FunctionInfo{Name: fn.Name, Kind: schema.QualityFunc, Masks: fn.Masks, Description: fn.Description})
	}
	for _, fn := range r.fill {
		out = append(out, schema.FunctionInfo{Name: fn.Name, Kind: schema.FillFunc, Description: fn.Description})
	}
	slices.SortFunc(out, func(a, b schema.FunctionInfo) int {
		if a.Kind != b.Kind {
			if a.Kind == schema.QualityFunc {
				return -1
			}
			return 1
		}
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out
}

// Names returns the sorted names of one function family.
func (r *Registry) Names(kind schema.FunctionKind) []string {
	var names []string
	for _, fn := range r.Functions() {
		if fn.Kind == kind {
			names = append(names, fn.Name)
		}
	}
	return names
}
