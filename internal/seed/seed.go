// Package seed reads bulk record inputs from YAML, JSON, XLSX and shapefile
// sources.
package seed

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/proximity-service/internal/model"
)

// Load reads record inputs from path, choosing the format by extension.
func Load(path string) ([]model.RecordInput, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "seed: read %s", path)
		}
		return Decode(data)
	case ".xlsx":
		return LoadXLSX(path)
	case ".shp":
		return LoadShapefile(path)
	default:
		return nil, eris.Errorf("seed: unsupported file type %q", filepath.Ext(path))
	}
}

// Decode parses a YAML or JSON list of inputs.
func Decode(data []byte) ([]model.RecordInput, error) {
	var inputs []model.RecordInput
	if err := yaml.Unmarshal(data, &inputs); err != nil {
		return nil, eris.Wrap(err, "seed: decode")
	}
	return inputs, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func parseFloat(s, field string, row int) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, eris.Wrapf(model.ErrInvalidParameter, "row %d: %s %q is not a number", row, field, s)
	}
	return v, nil
}
