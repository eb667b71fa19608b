package sqlengine

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/sqlflow/sqlflow"
)

func writeResultCSV(path string, res *result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: sqlengine: create %s: %v", sqlflow.ErrDatabase, path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(res.columns); err != nil {
		return fmt.Errorf("%w: sqlengine: write csv header: %v", sqlflow.ErrDatabase, err)
	}

	for _, row := range res.rows {
		rec := make([]string, len(res.columns))
		for i, col := range res.columns {
			rec[i] = fmt.Sprintf("%v", row[col])
		}

		if err := w.Write(rec); err != nil {
			return fmt.Errorf("%w: sqlengine: write csv row: %v", sqlflow.ErrDatabase, err)
		}
	}

	return w.Error()
}

func readCSVFile(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: sqlengine: open %s: %v", sqlflow.ErrDatabase, path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: sqlengine: read %s: %v", sqlflow.ErrDatabase, path, err)
	}

	if len(records) == 0 {
		return nil, nil, nil
	}

	return records[0], records[1:], nil
}
