package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/KevinKickass/ParamBridge/internal/types"
	"github.com/KevinKickass/ParamBridge/internal/vehicle"
	"go.uber.org/zap"
)

// Vehicle folders of the ArduPilot parameter repository.
const (
	FolderSub    = "Sub"
	FolderRover  = "Rover"
	FolderPlane  = "Plane"
	FolderCopter = "Copter"

	DefaultFolder = FolderSub
)

// VehicleFolder maps a vehicle kind to its ArduPilot document folder.
func VehicleFolder(kind vehicle.Kind) string {
	switch kind {
	case vehicle.KindSubmarine:
		return FolderSub
	case vehicle.KindGroundRover, vehicle.KindSurfaceBoat:
		return FolderRover
	case vehicle.KindFixedWing, vehicle.KindVTOLTailsit, vehicle.KindVTOLTiltrot:
		return FolderPlane
	case vehicle.KindQuadrotor, vehicle.KindHexarotor, vehicle.KindOctorotor, vehicle.KindTricopter,
		vehicle.KindCoaxial, vehicle.KindHelicopter, vehicle.KindDodecarotor, vehicle.KindDecarotor:
		return FolderCopter
	default:
		return DefaultFolder
	}
}

// DocumentName builds "<folder>-<major>.<minor>".
func DocumentName(folder string, major, minor int) string {
	return fmt.Sprintf("%s-%d.%d", folder, major, minor)
}

// SelectDocument picks the document with the same major version and the
// closest minor version not above the firmware's. ok is false when no
// such document exists.
func SelectDocument(names []string, folder string, v vehicle.Version) (name string, ok bool) {
	available := make(map[string]struct{}, len(names))
	for _, n := range names {
		available[n] = struct{}{}
	}

	for minor := v.Minor; minor >= 0; minor-- {
		candidate := DocumentName(folder, v.Major, minor)
		if _, found := available[candidate]; found {
			return candidate, true
		}
	}
	return "", false
}

// FallbackDocument picks some document when no version matches: the
// newest one of the same folder, otherwise the first name in order.
func FallbackDocument(names []string, folder string) (string, bool) {
	if len(names) == 0 {
		return "", false
	}

	best := ""
	bestMajor, bestMinor := -1, -1
	for _, n := range names {
		f, major, minor, ok := parseDocumentName(n)
		if !ok || f != folder {
			continue
		}
		if major > bestMajor || (major == bestMajor && minor > bestMinor) {
			best, bestMajor, bestMinor = n, major, minor
		}
	}
	if best != "" {
		return best, true
	}

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return sorted[0], true
}

func parseDocumentName(name string) (folder string, major, minor int, ok bool) {
	i := strings.LastIndex(name, "-")
	if i <= 0 {
		return "", 0, 0, false
	}
	majorStr, minorStr, found := strings.Cut(name[i+1:], ".")
	if !found {
		return "", 0, 0, false
	}
	major, err := strconv.Atoi(majorStr)
	if err != nil {
		return "", 0, 0, false
	}
	minor, err = strconv.Atoi(minorStr)
	if err != nil {
		return "", 0, 0, false
	}
	return name[:i], major, minor, true
}

// ParseArduPilot flattens a nested category document into a metadata
// map. Entries that are not objects (the format carries numeric marker
// entries) are skipped.
func ParseArduPilot(data []byte) (types.MetadataMap, error) {
	var categories map[string]json.RawMessage
	if err := json.Unmarshal(data, &categories); err != nil {
		return nil, fmt.Errorf("failed to unmarshal parameter definitions: %w", err)
	}

	keys := make([]string, 0, len(categories))
	for k := range categories {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make(types.MetadataMap)
	for _, category := range keys {
		raw := categories[category]
		if !isObject(raw) {
			continue
		}

		var entries map[string]json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("failed to unmarshal category %s: %w", category, err)
		}

		for name, rawEntry := range entries {
			if !isObject(rawEntry) {
				continue
			}
			var entry types.MetadataEntry
			if err := json.Unmarshal(rawEntry, &entry); err != nil {
				return nil, fmt.Errorf("failed to unmarshal %s.%s: %w", category, name, err)
			}
			result[name] = entry
		}
	}

	return result, nil
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

// ArduPilotSource resolves metadata from versioned parameter definition
// documents.
type ArduPilotSource struct {
	store     DocumentStore
	validator *Validator
	logger    *zap.Logger
}

func NewArduPilotSource(store DocumentStore, validator *Validator, logger *zap.Logger) *ArduPilotSource {
	return &ArduPilotSource{
		store:     store,
		validator: validator,
		logger:    logger,
	}
}

func (s *ArduPilotSource) Resolve(ctx context.Context, id vehicle.Identity) (types.MetadataMap, error) {
	names, err := s.store.Names()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrNoDocuments
	}

	folder := VehicleFolder(id.Kind)
	name, ok := SelectDocument(names, folder, id.Version)
	if !ok {
		name, _ = FallbackDocument(names, folder)
		s.logger.Warn("No metadata document for firmware version, using fallback",
			zap.String("folder", folder),
			zap.String("version", id.Version.String()),
			zap.String("document", name))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.store.Load(name)
	if err != nil {
		return nil, err
	}

	if s.validator != nil {
		if err := s.validator.ValidateArduPilot(data); err != nil {
			return nil, fmt.Errorf("validation failed for %s: %w", name, err)
		}
	}

	m, err := ParseArduPilot(data)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", name, err)
	}

	s.logger.Debug("Loaded ArduPilot parameter definitions",
		zap.String("document", name),
		zap.Int("entries", len(m)))

	return m, nil
}
