package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	_ "embed"

	"github.com/KevinKickass/ParamBridge/internal/types"
	"github.com/KevinKickass/ParamBridge/internal/vehicle"
	"go.uber.org/zap"
)

//go:embed static/px4-parameters.json
var bundledPX4 []byte

const maxDocumentSize = 16 << 20

type px4Value struct {
	Value       types.FlexString `json:"value"`
	Description string           `json:"description"`
}

type px4Bit struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
}

type px4Parameter struct {
	Name           string           `json:"name"`
	Type           string           `json:"type"`
	Category       string           `json:"category"`
	ShortDesc      string           `json:"shortDesc"`
	LongDesc       *string          `json:"longDesc"`
	Default        types.FlexString `json:"default"`
	Min            types.FlexString `json:"min"`
	Max            types.FlexString `json:"max"`
	Increment      types.FlexString `json:"increment"`
	Units          string           `json:"units"`
	Values         []px4Value       `json:"values"`
	Bitmask        []px4Bit         `json:"bitmask"`
	RebootRequired *bool            `json:"rebootRequired"`
	RebootRequire  *bool            `json:"rebootRequire"`
}

// ParsePX4 decodes a flat PX4 metadata list, either a bare array or an
// object with a "parameters" array, and normalizes it.
func ParsePX4(data []byte) (types.MetadataMap, error) {
	var list []px4Parameter

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("failed to unmarshal parameter list: %w", err)
		}
	} else {
		var doc struct {
			Parameters []px4Parameter `json:"parameters"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal parameter document: %w", err)
		}
		list = doc.Parameters
	}

	result := make(types.MetadataMap, len(list))
	for _, p := range list {
		if p.Name == "" {
			continue
		}
		result[p.Name] = normalizePX4(p)
	}
	return result, nil
}

func normalizePX4(p px4Parameter) types.MetadataEntry {
	isFloat := isFloatType(p.Type)

	description := p.ShortDesc
	if p.LongDesc != nil && *p.LongDesc != "" {
		description = *p.LongDesc
	}

	entry := types.MetadataEntry{
		DisplayName: p.ShortDesc,
		Description: description,
		User:        p.Category,
		Units:       p.Units,
		Default:     types.FlexString(FormatNumber(string(p.Default), isFloat)),
		Increment:   types.FlexString(FormatNumber(string(p.Increment), isFloat)),
	}

	if p.Min != "" && p.Max != "" {
		entry.Range = &types.MetadataRange{Low: p.Min, High: p.Max}
	}

	reboot := p.RebootRequired
	if reboot == nil {
		reboot = p.RebootRequire
	}
	if reboot != nil {
		entry.RebootRequired = types.FlexString(strconv.FormatBool(*reboot))
	}

	if len(p.Values) > 0 {
		entry.Values = make(map[string]string, len(p.Values))
		for _, v := range p.Values {
			entry.Values[string(v.Value)] = v.Description
		}
	}

	if len(p.Bitmask) > 0 {
		entry.Bitmask = make(map[string]string, len(p.Bitmask))
		for _, b := range p.Bitmask {
			entry.Bitmask[strconv.Itoa(b.Index)] = b.Description
		}
	}

	return entry
}

func isFloatType(t string) bool {
	switch strings.ToLower(t) {
	case "float", "double", "real32", "real64":
		return true
	}
	return false
}

// FormatNumber renders a numeric literal for the normalized schema. Whole
// numbers of floating-point parameters get exactly one decimal ("1.0") so
// they are not mistaken for integers later; everything else keeps its
// literal form.
func FormatNumber(literal string, isFloat bool) string {
	if literal == "" || !isFloat {
		return literal
	}
	f, err := strconv.ParseFloat(literal, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return literal
	}
	if f == math.Trunc(f) {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return literal
}

// PX4Source resolves metadata from the autopilot itself, falling back to a
// static copy.
type PX4Source struct {
	deviceURL  string
	staticPath string
	client     *http.Client
	validator  *Validator
	logger     *zap.Logger
}

// NewPX4Source creates a source fetching deviceURL first. staticPath
// overrides the bundled copy when set. Either may be empty.
func NewPX4Source(deviceURL, staticPath string, timeout time.Duration, validator *Validator, logger *zap.Logger) *PX4Source {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PX4Source{
		deviceURL:  deviceURL,
		staticPath: staticPath,
		client:     &http.Client{Timeout: timeout},
		validator:  validator,
		logger:     logger,
	}
}

func (s *PX4Source) Resolve(ctx context.Context, id vehicle.Identity) (types.MetadataMap, error) {
	data, deviceErr := s.fetchDevice(ctx)
	if deviceErr == nil {
		m, err := s.decode(data)
		if err == nil {
			return m, nil
		}
		deviceErr = err
	}

	s.logger.Warn("On-device parameter metadata unavailable, using static copy",
		zap.String("url", s.deviceURL),
		zap.Error(deviceErr))

	data, staticErr := s.loadStatic()
	if staticErr == nil {
		m, err := s.decode(data)
		if err == nil {
			return m, nil
		}
		staticErr = err
	}

	return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, errors.Join(deviceErr, staticErr))
}

func (s *PX4Source) decode(data []byte) (types.MetadataMap, error) {
	if s.validator != nil {
		if err := s.validator.ValidatePX4(data); err != nil {
			return nil, err
		}
	}
	return ParsePX4(data)
}

func (s *PX4Source) fetchDevice(ctx context.Context) ([]byte, error) {
	if s.deviceURL == "" {
		return nil, errors.New("no on-device metadata url configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.deviceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch failed: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	return data, nil
}

func (s *PX4Source) loadStatic() ([]byte, error) {
	if s.staticPath == "" {
		if len(bundledPX4) == 0 {
			return nil, errors.New("no bundled metadata")
		}
		return bundledPX4, nil
	}
	data, err := os.ReadFile(s.staticPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read static metadata: %w", err)
	}
	return data, nil
}
