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

package report

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/pida/rtjitter/jitter"
	"github.com/pida/rtjitter/tsop"
)

var testRows = []Row{
	{
		PeriodMS:         10,
		RateHz:           100,
		ExpectedS:        10,
		ObservedS:        10.0123,
		TotalDeviationMS: 12.3,
		TotalErrorPct:    0.123,
		MinUS:            2.5,
		MinPct:           0.02,
		MaxUS:            180.25,
		MaxPct:           1.8,
		MeanUS:           12.3,
		Variance:         42.125,
	},
	{
		PeriodMS:         0.1,
		RateHz:           10000,
		ExpectedS:        0.1,
		ObservedS:        0.1066,
		TotalDeviationMS: 6.6,
		TotalErrorPct:    6.6,
		MinUS:            51,
		MinPct:           51,
		MaxUS:            1234.5,
		MaxPct:           1234.5,
		MeanUS:           66,
		Variance:         3510.25,
	},
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestNewRow(t *testing.T) {
	s := &jitter.Stats{
		Period:         tsop.New(0, 10*tsop.NSPerMS),
		Intervals:      1000,
		Expected:       tsop.New(10, 0),
		Observed:       tsop.New(10, 50*tsop.NSPerMS),
		TotalDeviation: tsop.New(0, 50*tsop.NSPerMS),
		TotalErrorPct:  0.5,
		MinUS:          50,
		MaxUS:          50,
		MeanUS:         50,
		MinPct:         0.5,
		MaxPct:         0.5,
	}
	r := NewRow(s)
	require.Equal(t, 10.0, r.PeriodMS)
	require.InDelta(t, 100.0, r.RateHz, 1e-9)
	require.Equal(t, 10.0, r.ExpectedS)
	require.Equal(t, 10.05, r.ObservedS)
	require.Equal(t, 50.0, r.TotalDeviationMS)
	require.Equal(t, 0.5, r.TotalErrorPct)
	require.Equal(t, 50.0, r.MinUS)
	require.Equal(t, 50.0, r.MaxUS)
	require.Equal(t, 50.0, r.MeanUS)
	require.Equal(t, 0.0, r.Variance)

	rows := Rows([]*jitter.Result{{Stats: s}, {Stats: s}})
	require.Equal(t, []Row{r, r}, rows)
}

func TestRecords(t *testing.T) {
	require.Len(t, testRows[0].Records(), len(Header))
	require.Len(t, testRows[0].CSVRecords(), len(Header))
	require.Equal(t, []string{
		"10.000", "100.000", "10.000", "10.012", "12.300", "0.12",
		"2.500", "0.02", "180.250", "1.80", "12.300", "42.125",
	}, testRows[0].Records())
}

func TestWriteTSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTSV(&buf, testRows))
	newGoldie(t).Assert(t, "report_tsv", buf.Bytes())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testRows))
	newGoldie(t).Assert(t, "report_csv", buf.Bytes())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, testRows))
	newGoldie(t).Assert(t, "report_json", buf.Bytes())
}

func TestWriteLatex(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLatex(&buf, testRows, "Jitter on host_1 at 50% load", ""))
	newGoldie(t).Assert(t, "report_latex", buf.Bytes())
}

func TestWriteLatexNoCaption(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLatex(&buf, testRows[:1], "", "sleep"))
	require.NotContains(t, buf.String(), `\caption`)
	require.Contains(t, buf.String(), "\\label{tab:sleep}\n")
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, testRows))
	out := buf.String()
	for _, v := range []string{"180.250", "1234.50", "10000.000", "3510.250"} {
		require.Contains(t, out, v)
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriteFailure(t *testing.T) {
	for _, f := range Formats {
		t.Run(string(f), func(t *testing.T) {
			require.EqualError(t, Write(failWriter{}, f, testRows, Options{Caption: "test"}), "disk full")
		})
	}
}

func TestWriteSamples(t *testing.T) {
	var buf bytes.Buffer
	samples := []tsop.Timespec{
		tsop.New(1234, 999999000),
		tsop.New(1235, 9999000),
		tsop.New(1235, 20000500),
	}
	require.NoError(t, WriteSamples(&buf, samples))
	newGoldie(t).Assert(t, "samples", buf.Bytes())
}

func TestWrite(t *testing.T) {
	for _, f := range Formats {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, f, testRows, Options{Caption: "test"}))
			require.NotEmpty(t, buf.String())
		})
	}
	require.Error(t, Write(&bytes.Buffer{}, Format("xml"), testRows, Options{}))
}

func TestFormatFlag(t *testing.T) {
	f := FormatTable
	require.Equal(t, "format", f.Type())
	require.NoError(t, f.Set("LaTeX"))
	require.Equal(t, FormatLatex, f)
	require.Equal(t, "latex", f.String())
	require.Error(t, f.Set("xml"))
	require.Equal(t, FormatLatex, f)
}
