package artifacts

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kirillkom/emi-eligibility/internal/core/domain"
	"github.com/kirillkom/emi-eligibility/internal/infrastructure/tabular"
)

// LoadSchemaFile reads the trained column list from path. A missing, unreadable or empty
// artifact is a configuration error.
func LoadSchemaFile(path string) (domain.TrainedSchema, error) {
	format, err := tabular.FormatOf(path)
	if err != nil {
		return domain.TrainedSchema{}, domain.WrapError(domain.ErrConfiguration, "load trained schema", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return domain.TrainedSchema{}, domain.WrapError(domain.ErrConfiguration, "load trained schema", err)
	}
	defer f.Close()
	return ParseSchema(f, format)
}

// ParseSchema reads one column per row: the column name, optionally followed by a dtype.
// A leading header row ("column"/"name"/"feature") is skipped.
func ParseSchema(r io.Reader, format tabular.Format) (domain.TrainedSchema, error) {
	rows, err := tabular.ReadRows(r, format, 0)
	if err != nil {
		return domain.TrainedSchema{}, domain.WrapError(domain.ErrConfiguration, "parse trained schema", err)
	}
	if len(rows) > 0 && isHeader(rows[0]) {
		rows = rows[1:]
	}

	schema := domain.TrainedSchema{Columns: make([]domain.SchemaColumn, 0, len(rows))}
	seen := make(map[string]int, len(rows))
	for i, row := range rows {
		name := row[0]
		if name == "" {
			continue
		}
		if prev, ok := seen[name]; ok {
			return domain.TrainedSchema{}, domain.WrapError(domain.ErrConfiguration, "parse trained schema",
				fmt.Errorf("column %q repeated at rows %d and %d", name, prev+1, i+1))
		}
		seen[name] = i

		kind := domain.InferColumnKind(name)
		if len(row) > 1 && row[1] != "" {
			kind, err = domain.ParseFeatureKind(row[1])
			if err != nil {
				return domain.TrainedSchema{}, domain.WrapError(domain.ErrConfiguration, "parse trained schema",
					fmt.Errorf("column %q: %w", name, err))
			}
		}
		schema.Columns = append(schema.Columns, domain.SchemaColumn{Name: name, Kind: kind})
	}

	if schema.Len() == 0 {
		return domain.TrainedSchema{}, domain.WrapError(domain.ErrConfiguration, "parse trained schema",
			fmt.Errorf("schema artifact lists no columns"))
	}
	return schema, nil
}

func isHeader(row []string) bool {
	switch strings.ToLower(row[0]) {
	case "column", "columns", "name", "feature", "feature_name":
		return true
	default:
		return false
	}
}
