package mavlink

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Enum is a MAVLink enum field. The bridge encodes enums as
// {"type":"MAV_TYPE_SUBMARINE"}; plain numbers and bare strings are
// accepted as well.
type Enum struct {
	Name  string
	Value int
	Known bool
}

func (e *Enum) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '{':
		var obj struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		e.Name = obj.Type
	case '"':
		if err := json.Unmarshal(data, &e.Name); err != nil {
			return err
		}
	default:
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid enum value %s: %w", data, err)
		}
		e.Value = n
		e.Known = true
		return nil
	}

	e.Value, e.Known = enumValues[e.Name]
	return nil
}

// Or returns the numeric value, or def when the name is not known.
func (e Enum) Or(def int) int {
	if !e.Known {
		return def
	}
	return e.Value
}

func (e Enum) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
	}{Type: e.Name})
}

// enumRef builds an Enum from its symbolic name.
func enumRef(name string) Enum {
	v, ok := enumValues[name]
	return Enum{Name: name, Value: v, Known: ok}
}

var enumValues = map[string]int{
	"MAV_TYPE_GENERIC":                  0,
	"MAV_TYPE_FIXED_WING":               1,
	"MAV_TYPE_QUADROTOR":                2,
	"MAV_TYPE_COAXIAL":                  3,
	"MAV_TYPE_HELICOPTER":               4,
	"MAV_TYPE_ANTENNA_TRACKER":          5,
	"MAV_TYPE_GCS":                      6,
	"MAV_TYPE_GROUND_ROVER":             10,
	"MAV_TYPE_SURFACE_BOAT":             11,
	"MAV_TYPE_SUBMARINE":                12,
	"MAV_TYPE_HEXAROTOR":                13,
	"MAV_TYPE_OCTOROTOR":                14,
	"MAV_TYPE_TRICOPTER":                15,
	"MAV_TYPE_VTOL_TAILSITTER_DUOROTOR": 19,
	"MAV_TYPE_VTOL_TILTROTOR":           21,
	"MAV_TYPE_DODECAROTOR":              29,
	"MAV_TYPE_DECAROTOR":                35,

	"MAV_AUTOPILOT_GENERIC":       0,
	"MAV_AUTOPILOT_ARDUPILOTMEGA": 3,
	"MAV_AUTOPILOT_INVALID":       8,
	"MAV_AUTOPILOT_PX4":           12,

	"MAV_STATE_UNINIT":             0,
	"MAV_STATE_BOOT":               1,
	"MAV_STATE_CALIBRATING":        2,
	"MAV_STATE_STANDBY":            3,
	"MAV_STATE_ACTIVE":             4,
	"MAV_STATE_CRITICAL":           5,
	"MAV_STATE_EMERGENCY":          6,
	"MAV_STATE_POWEROFF":           7,
	"MAV_STATE_FLIGHT_TERMINATION": 8,

	"MAV_CMD_REQUEST_MESSAGE": 512,
}
