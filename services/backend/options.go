package backend

import (
	"strconv"
	"strings"

	"profitpilot/models"
)

var labelKeys = []string{"name", "title", "label", "display_name"}

// ProjectOptions maps loosely typed records to {id, label} options. Records without an id are dropped.
func ProjectOptions(records []RawRecord) []models.Option {
	options := make([]models.Option, 0, len(records))
	for _, r := range records {
		id := scalarString(r["id"])
		if id == "" {
			continue
		}
		label := id
		for _, k := range labelKeys {
			if v := strings.TrimSpace(scalarString(r[k])); v != "" {
				label = v
				break
			}
		}
		options = append(options, models.Option{ID: id, Label: label})
	}
	return options
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}
