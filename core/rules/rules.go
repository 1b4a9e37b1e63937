// Package rules parses and validates quality and gap-fill rule rows.
package rules

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/huangsam/strata/core/registry"
	"github.com/huangsam/strata/schema"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

const (
	qualityFamily = "quality"
	gapfillFamily = "gapfill"
)

// openBound lists the spellings of an unset window bound.
var openBound = map[string]struct{}{"": {}, "None": {}, "none": {}, "null": {}, "NaT": {}, "NaN": {}, "nan": {}}

var kwargPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*)$`)

type varKey struct {
	logger  string
	varname string
}

// Store is a validated, read-only rule set.
type Store struct {
	quality map[varKey][]schema.QualityFlagRule
	gapfill map[varKey][]schema.GapFlagRule
	digest  string
}

// loader accumulates rules and violations during Load.
type loader struct {
	reg    *registry.Registry
	errs   []error
	qseen  map[schema.RuleKey]struct{}
	gseen  map[schema.RuleKey]struct{}
	result *Store
}

func (l *loader) fail(family string, key schema.RuleKey, err error, format string, args ...any) {
	l.errs = append(l.errs, &schema.RuleDefinitionError{
		Family: family,
		Key:    key,
		Reason: fmt.Sprintf(format, args...),
		Err:    err,
	})
}

// Load validates every row against reg. All violations are reported together
// and no Store is returned unless every row is valid.
func Load(reg *registry.Registry, qualityRows []QualityRow, gapfillRows []GapFillRow) (*Store, error) {
	s := &Store{
		quality: make(map[varKey][]schema.QualityFlagRule),
		gapfill: make(map[varKey][]schema.GapFlagRule),
	}
	l := &loader{
		reg:    reg,
		qseen:  make(map[schema.RuleKey]struct{}),
		gseen:  make(map[schema.RuleKey]struct{}),
		result: s,
	}
	for _, row := range qualityRows {
		l.quality(row)
	}
	for _, row := range gapfillRows {
		l.gapfillRow(row)
	}
	l.checkSlots()
	if len(l.errs) > 0 {
		return nil, errors.Join(l.errs...)
	}

	for k := range s.quality {
		slices.SortFunc(s.quality[k], func(a, b schema.QualityFlagRule) int { return cmp.Compare(a.Flagnum, b.Flagnum) })
	}
	for k := range s.gapfill {
		slices.SortFunc(s.gapfill[k], func(a, b schema.GapFlagRule) int { return cmp.Compare(a.Flagnum, b.Flagnum) })
	}
	digest, err := s.computeDigest()
	if err != nil {
		return nil, err
	}
	s.digest = digest
	return s, nil
}

func (l *loader) key(family, logger, flagnum, varname string) (schema.RuleKey, bool) {
	key := schema.RuleKey{Logger: strings.TrimSpace(logger), Varname: strings.TrimSpace(varname)}
	ok := true
	n, err := parseFlagnum(flagnum)
	if err != nil {
		l.fail(family, key, nil, "invalid flagnum %q", flagnum)
		ok = false
	} else if n <= 0 {
		l.fail(family, key, nil, "flagnum must be positive, got %d", n)
		ok = false
	}
	key.Flagnum = n
	if key.Logger == "" {
		l.fail(family, key, nil, "logger is required")
		ok = false
	}
	if key.Varname == "" {
		l.fail(family, key, nil, "varname is required")
		ok = false
	}
	return key, ok
}

func (l *loader) quality(row QualityRow) {
	key, ok := l.key(qualityFamily, row.Logger, row.Flagnum, row.Varname)
	if !ok {
		return
	}
	if _, dup := l.qseen[key]; dup {
		l.fail(qualityFamily, key, nil, "duplicate rule key")
		return
	}
	l.qseen[key] = struct{}{}

	name := strings.TrimSpace(row.QFunc)
	fn, err := l.reg.ResolveQuality(name)
	if err != nil {
		l.fail(qualityFamily, key, err, "function not registered (available: %s)", strings.Join(l.reg.Names(schema.QualityFunc), ", "))
		return
	}
	window, ok := l.window(qualityFamily, key, "flag", row.StartFlag, row.EndFlag)
	if !ok {
		return
	}
	args, kwargs := splitArgs(row.args())
	if fn.Check != nil {
		if err := fn.Check(args, kwargs); err != nil {
			l.fail(qualityFamily, key, err, "invalid arguments for %s", name)
			return
		}
	}
	vk := varKey{key.Logger, key.Varname}
	l.result.quality[vk] = append(l.result.quality[vk], schema.QualityFlagRule{
		Logger:      key.Logger,
		Flagnum:     key.Flagnum,
		Varname:     key.Varname,
		Func:        name,
		Args:        args,
		Kwargs:      kwargs,
		Window:      window,
		Description: strings.TrimSpace(row.Description),
	})
}

func (l *loader) gapfillRow(row GapFillRow) {
	key, ok := l.key(gapfillFamily, row.Logger, row.Flagnum, row.Varname)
	if !ok {
		return
	}
	if _, dup := l.gseen[key]; dup {
		l.fail(gapfillFamily, key, nil, "duplicate rule key")
		return
	}
	l.gseen[key] = struct{}{}

	name := strings.TrimSpace(row.GFFunc)
	fn, err := l.reg.ResolveFill(name)
	if err != nil {
		l.fail(gapfillFamily, key, err, "function not registered (available: %s)", strings.Join(l.reg.Names(schema.FillFunc), ", "))
		return
	}
	apply, ok := l.window(gapfillFamily, key, "flag", row.StartFlag, row.EndFlag)
	if !ok {
		return
	}
	fit, ok := l.window(gapfillFamily, key, "fit", row.StartFit, row.EndFit)
	if !ok {
		return
	}
	kwargs, err := parseKwargs(row.GFKwargs)
	if err != nil {
		l.fail(gapfillFamily, key, err, "invalid gf_kwargs")
		return
	}
	if fn.Check != nil {
		if err := fn.Check(nil, kwargs); err != nil {
			l.fail(gapfillFamily, key, err, "invalid arguments for %s", name)
			return
		}
	}
	vk := varKey{key.Logger, key.Varname}
	l.result.gapfill[vk] = append(l.result.gapfill[vk], schema.GapFlagRule{
		Logger:      key.Logger,
		Flagnum:     key.Flagnum,
		Varname:     key.Varname,
		SrcLevel:    clean(row.SrcLevel),
		SrcVarname:  clean(row.SrcVarname),
		Func:        name,
		Apply:       apply,
		Fit:         fit,
		Kwargs:      kwargs,
		Description: strings.TrimSpace(row.Description),
	})
}

func (l *loader) window(family string, key schema.RuleKey, which, start, end string) (schema.Window, bool) {
	var w schema.Window
	var err error
	if w.Start, err = parseBound(start); err != nil {
		l.fail(family, key, err, "invalid start%s %q", which, start)
		return w, false
	}
	if w.End, err = parseBound(end); err != nil {
		l.fail(family, key, err, "invalid end%s %q", which, end)
		return w, false
	}
	if !w.Ordered() {
		l.fail(family, key, nil, "start%s %s is after end%s %s", which, w.Start.Format(time.RFC3339), which, w.End.Format(time.RFC3339))
		return w, false
	}
	return w, true
}

// checkSlots enforces one flag bit per rule in every (logger, varname, family).
func (l *loader) checkSlots() {
	for k, rs := range l.result.quality {
		if len(rs) > schema.MaxRulesPerVariable {
			l.fail(qualityFamily, schema.RuleKey{Logger: k.logger, Varname: k.varname}, nil,
				"%d rules exceed the limit of %d per variable", len(rs), schema.MaxRulesPerVariable)
		}
	}
	for k, rs := range l.result.gapfill {
		if len(rs) > schema.MaxRulesPerVariable {
			l.fail(gapfillFamily, schema.RuleKey{Logger: k.logger, Varname: k.varname}, nil,
				"%d rules exceed the limit of %d per variable", len(rs), schema.MaxRulesPerVariable)
		}
	}
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	if _, open := openBound[s]; open {
		return ""
	}
	return s
}

func parseFlagnum(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := cast.ToIntE(s); err == nil {
		return n, nil
	}
	f, err := cast.ToFloat64E(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("flagnum %q is not an integer", s)
	}
	return int(f), nil
}

func parseBound(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if _, open := openBound[s]; open {
		return nil, nil
	}
	t, err := cast.ToTimeE(s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

// splitArgs keeps positional arguments in order and moves key=value entries to kwargs.
// Blank slots are skipped.
func splitArgs(raw []string) ([]string, map[string]any) {
	var args []string
	var kwargs map[string]any
	for _, a := range raw {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if m := kwargPattern.FindStringSubmatch(a); m != nil {
			if kwargs == nil {
				kwargs = make(map[string]any)
			}
			kwargs[m[1]] = strings.TrimSpace(m[2])
			continue
		}
		args = append(args, a)
	}
	return args, kwargs
}

// parseKwargs decodes the gf_kwargs blob, written as a YAML or JSON mapping.
func parseKwargs(blob string) (map[string]any, error) {
	blob = strings.TrimSpace(blob)
	if _, open := openBound[blob]; open {
		return nil, nil
	}
	var kwargs map[string]any
	if err := yaml.Unmarshal([]byte(blob), &kwargs); err != nil {
		return nil, err
	}
	return kwargs, nil
}

func (s *Store) computeDigest() (string, error) {
	payload := struct {
		Quality []schema.QualityFlagRule `json:"quality"`
		GapFill []schema.GapFlagRule     `json:"gapfill"`
	}{s.AllQuality(), s.AllGapFill()}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("digesting rules: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// QualityRules returns the quality rules of one variable in flagnum order.
func (s *Store) QualityRules(logger, varname string) []schema.QualityFlagRule {
	return s.quality[varKey{logger, varname}]
}

// GapFillRules returns the gap-fill rules of one variable in flagnum order.
func (s *Store) GapFillRules(logger, varname string) []schema.GapFlagRule {
	return s.gapfill[varKey{logger, varname}]
}

// RulesFor returns both rule lists of one variable in flagnum order.
func (s *Store) RulesFor(logger, varname string) ([]schema.QualityFlagRule, []schema.GapFlagRule) {
	return s.QualityRules(logger, varname), s.GapFillRules(logger, varname)
}

// QualityVariables lists the variables of a logger that have quality rules, sorted.
func (s *Store) QualityVariables(logger string) []string {
	var out []string
	for k := range s.quality {
		if k.logger == logger {
			out = append(out, k.varname)
		}
	}
	slices.Sort(out)
	return out
}

// GapFillVariables lists the variables of a logger that have gap-fill rules, sorted.
func (s *Store) GapFillVariables(logger string) []string {
	var out []string
	for k := range s.gapfill {
		if k.logger == logger {
			out = append(out, k.varname)
		}
	}
	slices.Sort(out)
	return out
}

// Loggers lists every logger named by any rule, sorted.
func (s *Store) Loggers() []string {
	seen := make(map[string]struct{})
	for k := range s.quality {
		seen[k.logger] = struct{}{}
	}
	for k := range s.gapfill {
		seen[k.logger] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

// AllQuality returns every quality rule ordered by logger, varname and flagnum.
func (s *Store) AllQuality() []schema.QualityFlagRule {
	var out []schema.QualityFlagRule
	for _, rs := range s.quality {
		out = append(out, rs...)
	}
	slices.SortFunc(out, func(a, b schema.QualityFlagRule) int { return compareKeys(a.Key(), b.Key()) })
	return out
}

// AllGapFill returns every gap-fill rule ordered by logger, varname and flagnum.
func (s *Store) AllGapFill() []schema.GapFlagRule {
	var out []schema.GapFlagRule
	for _, rs := range s.gapfill {
		out = append(out, rs...)
	}
	slices.SortFunc(out, func(a, b schema.GapFlagRule) int { return compareKeys(a.Key(), b.Key()) })
	return out
}

func compareKeys(a, b schema.RuleKey) int {
	return cmp.Or(
		cmp.Compare(a.Logger, b.Logger),
		cmp.Compare(a.Varname, b.Varname),
		cmp.Compare(a.Flagnum, b.Flagnum),
	)
}

// Count returns the number of quality and gap-fill rules.
func (s *Store) Count() (quality, gapfill int) {
	for _, rs := range s.quality {
		quality += len(rs)
	}
	for _, rs := range s.gapfill {
		gapfill += len(rs)
	}
	return quality, gapfill
}

// Digest is a stable SHA-256 of the normalized rule set.
func (s *Store) Digest() string {
	return s.digest
}
