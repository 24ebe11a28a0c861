package seed

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/proximity-service/internal/model"
)

// LoadShapefile reads POINT records from a shapefile. Attributes come from
// the DBF fields NAME, ADDRESS, CATEGORY, PHONE and HOURS; coordinates come
// from the geometry and are assumed to be WGS 84.
func LoadShapefile(path string) ([]model.RecordInput, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "seed: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToUpper(name)] = i
	}
	for _, required := range []string{"NAME", "ADDRESS", "CATEGORY"} {
		if _, ok := fieldIdx[required]; !ok {
			return nil, eris.Errorf("seed: shapefile missing field %s", required)
		}
	}

	attr := func(name string) string {
		idx, ok := fieldIdx[name]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	var inputs []model.RecordInput
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		pt, ok := shape.(*shp.Point)
		if !ok {
			skipped++
			continue
		}
		inputs = append(inputs, model.RecordInput{
			Name:      attr("NAME"),
			Address:   attr("ADDRESS"),
			Latitude:  pt.Y,
			Longitude: pt.X,
			Category:  attr("CATEGORY"),
			Phone:     optional(attr("PHONE")),
			Hours:     optional(attr("HOURS")),
		})
	}

	if skipped > 0 {
		zap.L().Warn("seed: skipped non-point shapes",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return inputs, nil
}
