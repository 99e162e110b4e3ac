package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// MetadataEntry is the normalized descriptive record of one parameter.
// Numeric fields stay textual as in the ArduPilot parameter definitions;
// they are parsed when applied to a Parameter.
type MetadataEntry struct {
	DisplayName    string            `json:"DisplayName"`
	Description    string            `json:"Description,omitempty"`
	User           string            `json:"User,omitempty"`
	Range          *MetadataRange    `json:"Range,omitempty"`
	Increment      FlexString        `json:"Increment,omitempty"`
	RebootRequired FlexString        `json:"RebootRequired,omitempty"`
	ReadOnly       FlexString        `json:"ReadOnly,omitempty"`
	Bitmask        map[string]string `json:"Bitmask,omitempty"`
	Values         map[string]string `json:"Values,omitempty"`
	Units          string            `json:"Units,omitempty"`
	Default        FlexString        `json:"Default,omitempty"`
}

// MetadataRange holds the textual bounds of a parameter.
type MetadataRange struct {
	Low  FlexString `json:"low"`
	High FlexString `json:"high"`
}

// MetadataMap maps parameter names to their metadata.
type MetadataMap map[string]MetadataEntry

// Lookup returns the entry for name, if any.
func (m MetadataMap) Lookup(name string) (MetadataEntry, bool) {
	if m == nil {
		return MetadataEntry{}, false
	}
	e, ok := m[name]
	return e, ok
}

// FlexString decodes from a JSON string, number or boolean and keeps the
// literal text. Metadata documents are not consistent about quoting.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	switch string(data) {
	case "true", "false":
		*f = FlexString(data)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string, number or bool, got %s", data)
	}
	*f = FlexString(n.String())
	return nil
}

// Bool interprets the flag spellings used by metadata sources.
func (f FlexString) Bool() bool {
	switch strings.ToLower(strings.TrimSpace(string(f))) {
	case "true", "1", "yes":
		return true
	}
	return false
}
