/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package report formats measurement results for humans, papers and monitoring
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/pida/rtjitter/jitter"
	"github.com/pida/rtjitter/tsop"
)

// Row is a single line of the report, one per measured period
type Row struct {
	PeriodMS         float64 `json:"period_ms"`
	RateHz           float64 `json:"rate_hz"`
	ExpectedS        float64 `json:"expected_s"`
	ObservedS        float64 `json:"observed_s"`
	TotalDeviationMS float64 `json:"total_deviation_ms"`
	TotalErrorPct    float64 `json:"total_error_pct"`
	MinUS            float64 `json:"min_us"`
	MinPct           float64 `json:"min_pct"`
	MaxUS            float64 `json:"max_us"`
	MaxPct           float64 `json:"max_pct"`
	MeanUS           float64 `json:"mean_us"`
	Variance         float64 `json:"variance_us2"`
}

// Header of the report. Must be synced with Row.Records
var Header = []string{
	"TS(ms)",
	"FS(Hz)",
	"TE(s)",
	"TM(s)",
	"DT(ms)",
	"ET(%)",
	"DMin(us)",
	"EMin(%)",
	"DMax(us)",
	"EMax(%)",
	"Mean(us)",
	"Variance",
}

// NewRow builds report Row from Stats
func NewRow(s *jitter.Stats) Row {
	return Row{
		PeriodMS:         s.Period.Milliseconds(),
		RateHz:           s.RateHz(),
		ExpectedS:        s.Expected.Seconds(),
		ObservedS:        s.Observed.Seconds(),
		TotalDeviationMS: s.TotalDeviation.Milliseconds(),
		TotalErrorPct:    s.TotalErrorPct,
		MinUS:            s.MinUS,
		MinPct:           s.MinPct,
		MaxUS:            s.MaxUS,
		MaxPct:           s.MaxPct,
		MeanUS:           s.MeanUS,
		Variance:         s.VarianceUS2,
	}
}

// Rows builds report Rows from measurement results
func Rows(results []*jitter.Result) []Row {
	rows := make([]Row, 0, len(results))
	for _, r := range results {
		rows = append(rows, NewRow(r.Stats))
	}
	return rows
}

// Records returns all values of the row formatted for humans. Must be synced with Header.
func (r *Row) Records() []string {
	return []string{
		strconv.FormatFloat(r.PeriodMS, 'f', 3, 64),
		strconv.FormatFloat(r.RateHz, 'f', 3, 64),
		strconv.FormatFloat(r.ExpectedS, 'f', 3, 64),
		strconv.FormatFloat(r.ObservedS, 'f', 3, 64),
		strconv.FormatFloat(r.TotalDeviationMS, 'f', 3, 64),
		strconv.FormatFloat(r.TotalErrorPct, 'f', 2, 64),
		strconv.FormatFloat(r.MinUS, 'f', 3, 64),
		strconv.FormatFloat(r.MinPct, 'f', 2, 64),
		strconv.FormatFloat(r.MaxUS, 'f', 3, 64),
		strconv.FormatFloat(r.MaxPct, 'f', 2, 64),
		strconv.FormatFloat(r.MeanUS, 'f', 3, 64),
		strconv.FormatFloat(r.Variance, 'f', 3, 64),
	}
}

// CSVRecords returns all values of the row at full precision
func (r *Row) CSVRecords() []string {
	return []string{
		strconv.FormatFloat(r.PeriodMS, 'f', -1, 64),
		strconv.FormatFloat(r.RateHz, 'f', -1, 64),
		strconv.FormatFloat(r.ExpectedS, 'f', -1, 64),
		strconv.FormatFloat(r.ObservedS, 'f', -1, 64),
		strconv.FormatFloat(r.TotalDeviationMS, 'f', -1, 64),
		strconv.FormatFloat(r.TotalErrorPct, 'f', -1, 64),
		strconv.FormatFloat(r.MinUS, 'f', -1, 64),
		strconv.FormatFloat(r.MinPct, 'f', -1, 64),
		strconv.FormatFloat(r.MaxUS, 'f', -1, 64),
		strconv.FormatFloat(r.MaxPct, 'f', -1, 64),
		strconv.FormatFloat(r.MeanUS, 'f', -1, 64),
		strconv.FormatFloat(r.Variance, 'f', -1, 64),
	}
}

// Format of the report
type Format string

// Supported formats
const (
	FormatTable Format = "table"
	FormatTSV   Format = "tsv"
	FormatLatex Format = "latex"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// Formats lists all supported formats
var Formats = []Format{FormatTable, FormatTSV, FormatLatex, FormatCSV, FormatJSON}

func (f *Format) String() string {
	return string(*f)
}

// Set implements pflag.Value
func (f *Format) Set(s string) error {
	for _, known := range Formats {
		if strings.EqualFold(s, string(known)) {
			*f = known
			return nil
		}
	}
	return fmt.Errorf("unsupported format %q, must be one of %v", s, Formats)
}

// Type implements pflag.Value
func (f *Format) Type() string {
	return "format"
}

// Options tweak report output
type Options struct {
	// Caption and Label are only used by latex
	Caption string
	Label   string
}

// Write writes rows to w in given format
func Write(w io.Writer, f Format, rows []Row, opts Options) error {
	switch f {
	case FormatTable:
		return WriteTable(w, rows)
	case FormatTSV:
		return WriteTSV(w, rows)
	case FormatLatex:
		return WriteLatex(w, rows, opts.Caption, opts.Label)
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatJSON:
		return WriteJSON(w, rows)
	}
	return fmt.Errorf("unsupported format %q", f)
}

// stickyWriter remembers the first write error, table renderer doesn't report them
type stickyWriter struct {
	w   io.Writer
	err error
}

func (s *stickyWriter) Write(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	n, err := s.w.Write(p)
	s.err = err
	return n, err
}

// WriteTable prints rows as a human friendly table
func WriteTable(w io.Writer, rows []Row) error {
	sw := &stickyWriter{w: w}
	table := tablewriter.NewWriter(sw)
	table.Header(Header)
	for _, r := range rows {
		if err := table.Append(r.Records()); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	return sw.err
}

// WriteTSV prints rows separated by tabs, easy to paste into a spreadsheet
func WriteTSV(w io.Writer, rows []Row) error {
	if _, err := fmt.Fprintln(w, strings.Join(Header, "\t")); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintln(w, strings.Join(r.Records(), "\t")); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV writes header followed by rows as CSV
func WriteCSV(w io.Writer, rows []Row) error {
	csvwriter := csv.NewWriter(w)
	if err := csvwriter.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := csvwriter.Write(r.CSVRecords()); err != nil {
			return err
		}
	}
	csvwriter.Flush()
	return csvwriter.Error()
}

// WriteJSON writes rows as indented JSON array
func WriteJSON(w io.Writer, rows []Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// WriteSamples dumps raw samples, one per line
func WriteSamples(w io.Writer, samples []tsop.Timespec) error {
	for _, s := range samples {
		if _, err := fmt.Fprintf(w, "s=%d, ns=%d\n", s.Sec, s.Nsec); err != nil {
			return err
		}
	}
	return nil
}
