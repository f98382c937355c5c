// Package results reads and writes the tab separated table of predicted
// clusters
package results

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

// Row is the predicted cluster of one differential window
type Row struct {
	Window  int     `csv:"window"`
	Cluster int     `csv:"cluster"`
	Mz      float64 `csv:"mz"`
	RT      float64 `csv:"rt"`
	ExpMax  float64 `csv:"exp_max"`
	CtrlMax float64 `csv:"ctrl_max"`
	DiffMax float64 `csv:"diff_max"`
}

// Write stores rows in file name
func Write(name string, rows []Row) error {
	f, err := os.Create(name)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'
	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(w)); err != nil {
		return pfx.Err(fmt.Errorf("%s: %w", name, err))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return pfx.Err(err)
	}
	return f.Close()
}

// Read loads rows written by Write
func Read(name string) ([]Row, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	rows := []Row{}
	if err := gocsv.UnmarshalCSV(r, &rows); err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", name, err))
	}
	return rows, nil
}
