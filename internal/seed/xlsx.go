package seed

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/proximity-service/internal/model"
)

// xlsxColumns are the recognized header names.
var xlsxColumns = []string{"name", "address", "latitude", "longitude", "category", "phone", "hours"}

// LoadXLSX reads the first sheet of an XLSX workbook. The first row is a
// header naming the columns in any order; phone and hours are optional.
func LoadXLSX(path string) ([]model.RecordInput, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "seed: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("seed: xlsx has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	col := make(map[string]int, len(xlsxColumns))
	for i, cell := range sheet.Rows[0].Cells {
		col[strings.ToLower(strings.TrimSpace(cell.String()))] = i
	}
	for _, required := range xlsxColumns[:5] {
		if _, ok := col[required]; !ok {
			return nil, eris.Errorf("seed: xlsx header missing column %q", required)
		}
	}

	var inputs []model.RecordInput
	for i, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		get := func(name string) string {
			idx, ok := col[name]
			if !ok || idx >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[idx])
		}
		if strings.Join(cells, "") == "" {
			continue
		}

		rowNum := i + 2
		lat, err := parseFloat(get("latitude"), "latitude", rowNum)
		if err != nil {
			return nil, err
		}
		lon, err := parseFloat(get("longitude"), "longitude", rowNum)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, model.RecordInput{
			Name:      get("name"),
			Address:   get("address"),
			Latitude:  lat,
			Longitude: lon,
			Category:  get("category"),
			Phone:     optional(get("phone")),
			Hours:     optional(get("hours")),
		})
	}
	return inputs, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
