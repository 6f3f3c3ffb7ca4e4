package growth

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xitongsys/parquet-go/writer"

	"github.com/spaceforge/forgesim/pkg/sim/support/util/exception"
	"github.com/spaceforge/forgesim/pkg/sim/support/util/logger"
)

// doseRow is one masked cell of one job's dose grid.
type doseRow struct {
	JobIndex   int32   `parquet:"name=job_index, type=INT32"`
	WaferIndex int32   `parquet:"name=wafer_index, type=INT32"`
	Row        int32   `parquet:"name=row, type=INT32"`
	Col        int32   `parquet:"name=col, type=INT32"`
	TEndS      float64 `parquet:"name=t_end_s, type=DOUBLE"`
	DoseArb    float64 `parquet:"name=dose_arb, type=DOUBLE"`
	Aborted    bool    `parquet:"name=aborted, type=BOOLEAN"`
}

// rows flattens every grown job's masked cells in job, row, column order.
func (m *Monitor) rows() []doseRow {
	var out []doseRow
	for j := range m.jobs {
		job := &m.jobs[j]
		if !job.hadGrowth {
			continue
		}
		for r := 0; r < m.gridN; r++ {
			for c := 0; c < m.gridN; c++ {
				idx := r*m.gridN + c
				if !m.mask[idx] {
					continue
				}
				out = append(out, doseRow{
					JobIndex: int32(j),
					Row:      int32(r),
					Col:      int32(c),
					TEndS:    job.lastTEndS,
					DoseArb:  job.dose[idx],
					Aborted:  job.aborted,
				})
			}
		}
	}
	return out
}

// writeArtifact writes the dose grid in the configured format.
func (m *Monitor) writeArtifact() error {
	if err := os.MkdirAll(m.outputDir, 0o755); err != nil {
		return exception.NewSimError(m.name, "failed to create output directory '"+m.outputDir+"'", err, false)
	}

	rows := m.rows()
	if len(rows) == 0 {
		logger.Debugf("Growth monitor saw no growth; skipping artifact.")
		return nil
	}

	if m.outputFormat == "parquet" {
		return m.writeParquet(rows)
	}
	return m.writeCSV(rows)
}

func (m *Monitor) writeCSV(rows []doseRow) error {
	path := filepath.Join(m.outputDir, "growth_monitor.csv")
	f, err := os.Create(path)
	if err != nil {
		return exception.NewSimError(m.name, "failed to create '"+path+"'", err, false)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"job_index", "wafer_index", "row", "col", "t_end_s", "dose_arb", "aborted"}); err != nil {
		return exception.NewSimError(m.name, "failed to write header to '"+path+"'", err, false)
	}
	for _, row := range rows {
		rec := []string{
			strconv.Itoa(int(row.JobIndex)),
			strconv.Itoa(int(row.WaferIndex)),
			strconv.Itoa(int(row.Row)),
			strconv.Itoa(int(row.Col)),
			strconv.FormatFloat(row.TEndS, 'g', -1, 64),
			strconv.FormatFloat(row.DoseArb, 'g', -1, 64),
			strconv.FormatBool(row.Aborted),
		}
		if err := w.Write(rec); err != nil {
			return exception.NewSimError(m.name, "failed to write row to '"+path+"'", err, false)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return exception.NewSimError(m.name, "failed to flush '"+path+"'", err, false)
	}

	logger.Infof("Growth monitor wrote %d dose rows to %s.", len(rows), path)
	return nil
}

func (m *Monitor) writeParquet(rows []doseRow) error {
	path := filepath.Join(m.outputDir, "growth_monitor.parquet")
	f, err := os.Create(path)
	if err != nil {
		return exception.NewSimError(m.name, "failed to create '"+path+"'", err, false)
	}
	defer f.Close()

	pw, err := writer.NewParquetWriterFromWriter(f, new(doseRow), 1)
	if err != nil {
		return exception.NewSimError(m.name, "failed to create parquet writer for '"+path+"'", err, false)
	}
	for i := range rows {
		if err := pw.Write(rows[i]); err != nil {
			return exception.NewSimError(m.name, "failed to write parquet row to '"+path+"'", err, false)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return exception.NewSimError(m.name, "failed to finalize '"+path+"'", err, false)
	}

	logger.Infof("Growth monitor wrote %d dose rows to %s.", len(rows), path)
	return nil
}
