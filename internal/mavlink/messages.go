package mavlink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KevinKickass/ParamBridge/internal/types"
	"github.com/KevinKickass/ParamBridge/internal/vehicle"
)

// Message type names used on the bridge.
const (
	TypeParamValue       = "PARAM_VALUE"
	TypeParamRequestList = "PARAM_REQUEST_LIST"
	TypeParamSet         = "PARAM_SET"
	TypeHeartbeat        = "HEARTBEAT"
	TypeAutopilotVersion = "AUTOPILOT_VERSION"
	TypeCommandLong      = "COMMAND_LONG"
)

// Message and command ids used when asking the autopilot for a message.
const (
	MsgIDAutopilotVersion = 148
	CmdRequestMessage     = "MAV_CMD_REQUEST_MESSAGE"
)

// paramIDLength is the size of the param_id char array.
const paramIDLength = 16

// Header identifies the sender of a bridge message.
type Header struct {
	SystemID    uint8 `json:"system_id"`
	ComponentID uint8 `json:"component_id"`
	Sequence    uint8 `json:"sequence"`
}

type envelope struct {
	Header  Header          `json:"header"`
	Message json.RawMessage `json:"message"`
}

// ParamID is the NUL-padded parameter name. The bridge sends it as an
// array of one-character strings; a plain string is accepted too.
type ParamID string

func (p *ParamID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}

	var s string
	if data[0] == '[' {
		var chars []string
		if err := json.Unmarshal(data, &chars); err != nil {
			return fmt.Errorf("invalid param_id: %w", err)
		}
		s = strings.Join(chars, "")
	} else if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid param_id: %w", err)
	}

	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	*p = ParamID(s)
	return nil
}

func (p ParamID) MarshalJSON() ([]byte, error) {
	chars := make([]string, paramIDLength)
	for i := range chars {
		if i < len(p) {
			chars[i] = string(p[i])
		} else {
			chars[i] = "\x00"
		}
	}
	return json.Marshal(chars)
}

type paramValue struct {
	ParamID    ParamID `json:"param_id"`
	ParamValue float32 `json:"param_value"`
	ParamType  Enum    `json:"param_type"`
	ParamCount *uint16 `json:"param_count"`
	ParamIndex uint16  `json:"param_index"`
}

// heartbeat carries the vehicle type as "mavtype" since "type" names
// the message.
type heartbeat struct {
	Type         Enum `json:"mavtype"`
	Autopilot    Enum `json:"autopilot"`
	SystemStatus Enum `json:"system_status"`
}

type autopilotVersion struct {
	FlightSWVersion uint32 `json:"flight_sw_version"`
}

// Frame is one decoded bridge message. Exactly one payload is set for
// the supported types; other types only carry the header.
type Frame struct {
	Header           Header
	Type             string
	Param            *types.ParamMessage
	Heartbeat        *vehicle.Heartbeat
	AutopilotVersion *uint32
}

// Decode parses one bridge message.
func Decode(data []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Frame{}, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if len(env.Message) == 0 {
		return Frame{}, fmt.Errorf("message missing")
	}

	var kind struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(env.Message, &kind); err != nil {
		return Frame{}, fmt.Errorf("failed to decode message type: %w", err)
	}

	frame := Frame{Header: env.Header, Type: kind.Type}

	switch kind.Type {
	case TypeParamValue:
		var pv paramValue
		if err := json.Unmarshal(env.Message, &pv); err != nil {
			return frame, fmt.Errorf("failed to decode %s: %w", kind.Type, err)
		}
		frame.Param = &types.ParamMessage{
			Index: pv.ParamIndex,
			Name:  string(pv.ParamID),
			Value: pv.ParamValue,
			Type:  types.ParamType(pv.ParamType.Name),
			Count: pv.ParamCount,
		}

	case TypeHeartbeat:
		var hb heartbeat
		if err := json.Unmarshal(env.Message, &hb); err != nil {
			return frame, fmt.Errorf("failed to decode %s: %w", kind.Type, err)
		}
		frame.Heartbeat = &vehicle.Heartbeat{
			SystemID:     env.Header.SystemID,
			ComponentID:  env.Header.ComponentID,
			Type:         hb.Type.Or(int(vehicle.KindUnknown)),
			Autopilot:    hb.Autopilot.Or(-1),
			SystemStatus: hb.SystemStatus.Or(-1),
		}

	case TypeAutopilotVersion:
		var av autopilotVersion
		if err := json.Unmarshal(env.Message, &av); err != nil {
			return frame, fmt.Errorf("failed to decode %s: %w", kind.Type, err)
		}
		frame.AutopilotVersion = &av.FlightSWVersion
	}

	return frame, nil
}

type outbound struct {
	Header  Header `json:"header"`
	Message any    `json:"message"`
}

type paramRequestList struct {
	Type            string `json:"type"`
	TargetSystem    uint8  `json:"target_system"`
	TargetComponent uint8  `json:"target_component"`
}

type paramSet struct {
	Type            string  `json:"type"`
	ParamValue      float32 `json:"param_value"`
	TargetSystem    uint8   `json:"target_system"`
	TargetComponent uint8   `json:"target_component"`
	ParamID         ParamID `json:"param_id"`
	ParamType       Enum    `json:"param_type"`
}

type commandLong struct {
	Type            string  `json:"type"`
	Param1          float32 `json:"param1"`
	Param2          float32 `json:"param2"`
	Param3          float32 `json:"param3"`
	Param4          float32 `json:"param4"`
	Param5          float32 `json:"param5"`
	Param6          float32 `json:"param6"`
	Param7          float32 `json:"param7"`
	Command         Enum    `json:"command"`
	TargetSystem    uint8   `json:"target_system"`
	TargetComponent uint8   `json:"target_component"`
	Confirmation    uint8   `json:"confirmation"`
}

// EncodeCommandLong builds a COMMAND_LONG carrying command and its first
// parameters; missing parameters are zero.
func EncodeCommandLong(from Header, targetSystem, targetComponent uint8, command string, params ...float32) ([]byte, error) {
	if len(params) > 7 {
		return nil, fmt.Errorf("command %s: %d parameters, at most 7", command, len(params))
	}
	var p [7]float32
	copy(p[:], params)

	return json.Marshal(outbound{
		Header: from,
		Message: commandLong{
			Type:            TypeCommandLong,
			Param1:          p[0],
			Param2:          p[1],
			Param3:          p[2],
			Param4:          p[3],
			Param5:          p[4],
			Param6:          p[5],
			Param7:          p[6],
			Command:         enumRef(command),
			TargetSystem:    targetSystem,
			TargetComponent: targetComponent,
		},
	})
}

// EncodeRequestAutopilotVersion asks the target to send AUTOPILOT_VERSION.
// ArduPilot does not stream it.
func EncodeRequestAutopilotVersion(from Header, targetSystem, targetComponent uint8) ([]byte, error) {
	return EncodeCommandLong(from, targetSystem, targetComponent, CmdRequestMessage, MsgIDAutopilotVersion)
}

// EncodeParamRequestList builds a PARAM_REQUEST_LIST for the target.
func EncodeParamRequestList(from Header, targetSystem, targetComponent uint8) ([]byte, error) {
	return json.Marshal(outbound{
		Header: from,
		Message: paramRequestList{
			Type:            TypeParamRequestList,
			TargetSystem:    targetSystem,
			TargetComponent: targetComponent,
		},
	})
}

// EncodeParamSet builds a PARAM_SET for the target.
func EncodeParamSet(from Header, targetSystem, targetComponent uint8, name string, value float64, paramType types.ParamType) ([]byte, error) {
	if len(name) == 0 || len(name) > paramIDLength {
		return nil, fmt.Errorf("invalid parameter name %q", name)
	}
	if paramType == "" {
		paramType = types.ParamTypeReal32
	}
	return json.Marshal(outbound{
		Header: from,
		Message: paramSet{
			Type:            TypeParamSet,
			ParamValue:      float32(value),
			TargetSystem:    targetSystem,
			TargetComponent: targetComponent,
			ParamID:         ParamID(name),
			ParamType:       enumRef(string(paramType)),
		},
	})
}
