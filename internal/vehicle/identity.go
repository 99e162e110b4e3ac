package vehicle

import "fmt"

// Kind is the MAV_TYPE reported by the autopilot heartbeat.
type Kind int

const (
	KindUnknown     Kind = -1
	KindGeneric     Kind = 0
	KindFixedWing   Kind = 1
	KindQuadrotor   Kind = 2
	KindCoaxial     Kind = 3
	KindHelicopter  Kind = 4
	KindGroundRover Kind = 10
	KindSurfaceBoat Kind = 11
	KindSubmarine   Kind = 12
	KindHexarotor   Kind = 13
	KindOctorotor   Kind = 14
	KindTricopter   Kind = 15
	KindDodecarotor Kind = 29
	KindDecarotor   Kind = 35
	KindVTOLTailsit Kind = 19
	KindVTOLTiltrot Kind = 21
)

func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "unknown"
	case KindFixedWing:
		return "fixed_wing"
	case KindQuadrotor, KindHexarotor, KindOctorotor, KindTricopter, KindDodecarotor, KindDecarotor, KindCoaxial:
		return "multirotor"
	case KindHelicopter:
		return "helicopter"
	case KindGroundRover:
		return "ground_rover"
	case KindSurfaceBoat:
		return "surface_boat"
	case KindSubmarine:
		return "submarine"
	case KindVTOLTailsit, KindVTOLTiltrot:
		return "vtol"
	default:
		return fmt.Sprintf("mav_type_%d", int(k))
	}
}

// Firmware is the autopilot firmware family, from MAV_AUTOPILOT.
type Firmware string

const (
	FirmwareUnknown   Firmware = ""
	FirmwareArduPilot Firmware = "ardupilot"
	FirmwarePX4       Firmware = "px4"
)

// FirmwareFromAutopilot maps a MAV_AUTOPILOT value to a firmware family.
func FirmwareFromAutopilot(autopilot int) Firmware {
	switch autopilot {
	case 3:
		return FirmwareArduPilot
	case 12:
		return FirmwarePX4
	default:
		return FirmwareUnknown
	}
}

// Version is a firmware semantic version.
type Version struct {
	Major int `json:"major" mapstructure:"major"`
	Minor int `json:"minor" mapstructure:"minor"`
	Patch int `json:"patch" mapstructure:"patch"`
}

// VersionFromFlightSW decodes AUTOPILOT_VERSION.flight_sw_version
// (major, minor, patch in the three high bytes).
func VersionFromFlightSW(v uint32) Version {
	return Version{
		Major: int(v >> 24 & 0xff),
		Minor: int(v >> 16 & 0xff),
		Patch: int(v >> 8 & 0xff),
	}
}

// Known reports whether the version has been reported or pinned.
func (v Version) Known() bool {
	return v != Version{}
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Identity is what the metadata resolver needs to know about a vehicle.
type Identity struct {
	Kind     Kind     `json:"kind"`
	Firmware Firmware `json:"firmware"`
	Version  Version  `json:"version"`
}

func (i Identity) String() string {
	fw := string(i.Firmware)
	if fw == "" {
		fw = "unknown"
	}
	return fmt.Sprintf("%s/%s %s", fw, i.Kind, i.Version)
}

// KnownKind reports whether the vehicle kind has been identified.
func (i Identity) KnownKind() bool {
	return i.Kind != KindUnknown
}

// Source provides the current identity of the connected vehicle.
type Source interface {
	Identity() Identity
}

// Static is a fixed identity, used when the vehicle is pinned in config.
type Static Identity

func (s Static) Identity() Identity {
	return Identity(s)
}
