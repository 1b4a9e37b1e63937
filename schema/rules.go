package schema

import "fmt"

// RuleKey uniquely identifies a rule within its family.
type RuleKey struct {
	Logger  string `json:"logger"`
	Flagnum int    `json:"flagnum"`
	Varname string `json:"varname"`
}

// String renders the key as logger/flagnum/varname.
func (k RuleKey) String() string {
	return fmt.Sprintf("%s/%d/%s", k.Logger, k.Flagnum, k.Varname)
}

// QualityFlagRule is a validated quality check bound to one variable.
type QualityFlagRule struct {
	Logger      string         `json:"logger"`
	Flagnum     int            `json:"flagnum"`
	Varname     string         `json:"varname"`
	Func        string         `json:"func"`
	Args        []string       `json:"args,omitempty"`
	Kwargs      map[string]any `json:"kwargs,omitempty"`
	Window      Window         `json:"window"`
	Description string         `json:"description,omitempty"`
}

// Key returns the rule's primary key.
func (r QualityFlagRule) Key() RuleKey {
	return RuleKey{Logger: r.Logger, Flagnum: r.Flagnum, Varname: r.Varname}
}

// GapFlagRule is a validated gap-fill rule bound to one variable.
// Empty SrcLevel and SrcVarname default to the level and variable being filled.
type GapFlagRule struct {
	Logger      string         `json:"logger"`
	Flagnum     int            `json:"flagnum"`
	Varname     string         `json:"varname"`
	SrcLevel    string         `json:"src_level,omitempty"`
	SrcVarname  string         `json:"src_varname,omitempty"`
	Func        string         `json:"func"`
	Apply       Window         `json:"apply"`
	Fit         Window         `json:"fit"`
	Kwargs      map[string]any `json:"kwargs,omitempty"`
	Description string         `json:"description,omitempty"`
}

// Key returns the rule's primary key.
func (r GapFlagRule) Key() RuleKey {
	return RuleKey{Logger: r.Logger, Flagnum: r.Flagnum, Varname: r.Varname}
}

// LevelSpec names one level of a chain and the stage that produces it.
type LevelSpec struct {
	Name  string    `mapstructure:"name" json:"name"`
	Stage StageKind `mapstructure:"stage" json:"stage"`
}

// FunctionInfo describes a registered function for listings.
type FunctionInfo struct {
	Name        string       `json:"name"`
	Kind        FunctionKind `json:"kind"`
	Masks       bool         `json:"masks"`
	Description string       `json:"description,omitempty"`
}
