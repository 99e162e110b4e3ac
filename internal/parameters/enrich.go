package parameters

import (
	"sort"
	"strconv"
	"strings"

	"github.com/KevinKickass/ParamBridge/internal/types"
)

// Enrich copies the descriptive fields of entry onto p. The value, index,
// name and wire type are left untouched.
func Enrich(p *types.Parameter, entry types.MetadataEntry) {
	p.Description = entry.Description
	p.ShortDescription = entry.DisplayName
	p.Units = entry.Units
	p.ReadOnly = entry.ReadOnly.Bool()
	p.RebootRequired = entry.RebootRequired.Bool()
	p.Options = parseOptions(entry.Values)
	p.Bitmask = parseBitmask(entry.Bitmask)
	p.Increment = parseFloat(entry.Increment)
	p.Default = parseFloat(entry.Default)

	p.Range = nil
	if entry.Range != nil {
		low := parseFloat(entry.Range.Low)
		high := parseFloat(entry.Range.High)
		if low != nil && high != nil {
			p.Range = &types.Range{Low: *low, High: *high}
		}
	}
}

func parseFloat(s types.FlexString) *float64 {
	str := strings.TrimSpace(string(s))
	if str == "" {
		return nil
	}
	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseOptions(values map[string]string) []types.Option {
	if len(values) == 0 {
		return nil
	}
	options := make([]types.Option, 0, len(values))
	for k, label := range values {
		f, err := strconv.ParseFloat(strings.TrimSpace(k), 64)
		if err != nil {
			continue
		}
		options = append(options, types.Option{Value: f, Label: label})
	}
	sort.Slice(options, func(i, j int) bool {
		return options[i].Value < options[j].Value
	})
	return options
}

func parseBitmask(bits map[string]string) map[int]string {
	if len(bits) == 0 {
		return nil
	}
	out := make(map[int]string, len(bits))
	for k, label := range bits {
		i, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			continue
		}
		out[i] = label
	}
	return out
}
