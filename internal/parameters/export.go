package parameters

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/KevinKickass/ParamBridge/internal/types"
	"gopkg.in/yaml.v3"
)

// Format is an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	// FormatParam is the plain "NAME,VALUE" list ground stations load.
	FormatParam Format = "param"
)

// ParseFormat maps a format name to a Format. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatParam:
		return FormatParam, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the MIME type of the encoding.
func (f Format) ContentType() string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatParam:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// Export is a point-in-time dump of a parameter set.
type Export struct {
	GeneratedAt time.Time         `json:"generated_at" yaml:"generated_at"`
	SessionID   string            `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Vehicle     string            `json:"vehicle,omitempty" yaml:"vehicle,omitempty"`
	Complete    bool              `json:"complete" yaml:"complete"`
	Count       int               `json:"count" yaml:"count"`
	Parameters  []types.Parameter `json:"parameters" yaml:"parameters"`
}

// Write encodes e to w.
func (e Export) Write(w io.Writer, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()

	case FormatParam:
		bw := bufio.NewWriter(w)
		fmt.Fprintf(bw, "# generated %s\n", e.GeneratedAt.UTC().Format(time.RFC3339))
		if e.Vehicle != "" {
			fmt.Fprintf(bw, "# vehicle %s\n", e.Vehicle)
		}
		for _, p := range e.Parameters {
			fmt.Fprintf(bw, "%s,%s\n", p.Name, strconv.FormatFloat(p.Value, 'g', -1, 64))
		}
		return bw.Flush()

	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	}
}
