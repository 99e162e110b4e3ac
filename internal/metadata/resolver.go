// Package metadata resolves descriptive parameter metadata for the
// identified vehicle and normalizes the two firmware-specific formats
// into one name-keyed map.
package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/KevinKickass/ParamBridge/internal/types"
	"github.com/KevinKickass/ParamBridge/internal/vehicle"
	"go.uber.org/zap"
)

var (
	ErrUnknownVehicle      = errors.New("vehicle kind not identified")
	ErrUnsupportedFirmware = errors.New("unsupported firmware")
	ErrNoDocuments         = errors.New("no metadata documents available")
	ErrSourceUnavailable   = errors.New("metadata source unavailable")
)

// Resolver produces the metadata map for a vehicle identity.
type Resolver interface {
	Resolve(ctx context.Context, id vehicle.Identity) (types.MetadataMap, error)
}

// Service dispatches to the resolver of the vehicle's firmware family.
type Service struct {
	ardupilot *ArduPilotSource
	px4       *PX4Source
	logger    *zap.Logger
}

func NewService(ardupilot *ArduPilotSource, px4 *PX4Source, logger *zap.Logger) *Service {
	return &Service{
		ardupilot: ardupilot,
		px4:       px4,
		logger:    logger,
	}
}

func (s *Service) Resolve(ctx context.Context, id vehicle.Identity) (types.MetadataMap, error) {
	if !id.KnownKind() {
		return nil, ErrUnknownVehicle
	}

	var (
		m   types.MetadataMap
		err error
	)
	switch id.Firmware {
	case vehicle.FirmwareArduPilot:
		if s.ardupilot == nil {
			return nil, fmt.Errorf("%w: ardupilot source not configured", ErrUnsupportedFirmware)
		}
		m, err = s.ardupilot.Resolve(ctx, id)
	case vehicle.FirmwarePX4:
		if s.px4 == nil {
			return nil, fmt.Errorf("%w: px4 source not configured", ErrUnsupportedFirmware)
		}
		m, err = s.px4.Resolve(ctx, id)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFirmware, id.Firmware)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Parameter metadata resolved",
		zap.String("firmware", string(id.Firmware)),
		zap.String("vehicle", id.Kind.String()),
		zap.String("version", id.Version.String()),
		zap.Int("entries", len(m)))

	return m, nil
}
