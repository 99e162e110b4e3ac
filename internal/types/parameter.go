package types

import (
	"math"
	"sort"
)

// SentinelIndex marks a PARAM_VALUE that only refreshes the value of an
// already declared parameter. It is the largest value the index field holds.
const SentinelIndex uint16 = math.MaxUint16

// ParamType is the wire type tag of a parameter value.
type ParamType string

const (
	ParamTypeUint8  ParamType = "MAV_PARAM_TYPE_UINT8"
	ParamTypeInt8   ParamType = "MAV_PARAM_TYPE_INT8"
	ParamTypeUint16 ParamType = "MAV_PARAM_TYPE_UINT16"
	ParamTypeInt16  ParamType = "MAV_PARAM_TYPE_INT16"
	ParamTypeUint32 ParamType = "MAV_PARAM_TYPE_UINT32"
	ParamTypeInt32  ParamType = "MAV_PARAM_TYPE_INT32"
	ParamTypeUint64 ParamType = "MAV_PARAM_TYPE_UINT64"
	ParamTypeInt64  ParamType = "MAV_PARAM_TYPE_INT64"
	ParamTypeReal32 ParamType = "MAV_PARAM_TYPE_REAL32"
	ParamTypeReal64 ParamType = "MAV_PARAM_TYPE_REAL64"
)

// Valid reports whether t is one of the known wire types.
func (t ParamType) Valid() bool {
	switch t {
	case ParamTypeUint8, ParamTypeInt8, ParamTypeUint16, ParamTypeInt16,
		ParamTypeUint32, ParamTypeInt32, ParamTypeUint64, ParamTypeInt64,
		ParamTypeReal32, ParamTypeReal64:
		return true
	}
	return false
}

// IsFloat reports whether values of this type are floating point.
func (t ParamType) IsFloat() bool {
	return t == ParamTypeReal32 || t == ParamTypeReal64
}

// Range is the inclusive valid interval of a parameter.
type Range struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// Option labels one value of an enumerated parameter.
type Option struct {
	Value float64 `json:"value" yaml:"value"`
	Label string  `json:"label" yaml:"label"`
}

// Parameter is one configuration slot on the autopilot.
type Parameter struct {
	Name  string    `json:"name" yaml:"name"`
	Index uint16    `json:"index" yaml:"index"`
	Value float64   `json:"value" yaml:"value"`
	Type  ParamType `json:"param_type" yaml:"param_type"`

	ReadOnly         bool           `json:"readonly" yaml:"readonly"`
	RebootRequired   bool           `json:"reboot_required" yaml:"reboot_required"`
	Description      string         `json:"description,omitempty" yaml:"description,omitempty"`
	ShortDescription string         `json:"short_description,omitempty" yaml:"short_description,omitempty"`
	Units            string         `json:"units,omitempty" yaml:"units,omitempty"`
	Options          []Option       `json:"options,omitempty" yaml:"options,omitempty"`
	Bitmask          map[int]string `json:"bitmask,omitempty" yaml:"bitmask,omitempty"`
	Range            *Range         `json:"range,omitempty" yaml:"range,omitempty"`
	Increment        *float64       `json:"increment,omitempty" yaml:"increment,omitempty"`
	Default          *float64       `json:"default,omitempty" yaml:"default,omitempty"`
}

// RoundValue rounds a raw value to 4 decimal digits. Values arrive as
// float32 on the wire; rounding removes the noise of widening them.
func RoundValue(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// OptionLabel returns the label of the option matching the current value.
func (p *Parameter) OptionLabel() (string, bool) {
	for _, o := range p.Options {
		if o.Value == p.Value {
			return o.Label, true
		}
	}
	return "", false
}

// SortParameters orders parameters by device index.
func SortParameters(params []Parameter) {
	sort.Slice(params, func(i, j int) bool {
		return params[i].Index < params[j].Index
	})
}
