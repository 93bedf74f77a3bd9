// Copyright 2022-2025
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package benchmark imports externally sourced reference series (BTC, ETH)
// from CSV files uploaded by an administrator.
package benchmark

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/signalclub/roi-api/data"
	"github.com/signalclub/roi-api/date"
	"github.com/signalclub/roi-api/dec"
)

var ErrUnknownSeries = errors.New("not an importable benchmark series")

// RowError pins one validation failure to its line in the upload.
type RowError struct {
	Line    int
	Message string
}

func (e RowError) String() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ParseError carries every row failure found in one file so the uploader
// can fix them all in one pass.
type ParseError struct {
	Rows []RowError
}

func (e *ParseError) Error() string {
	msgs := make([]string, len(e.Rows))
	for idx, row := range e.Rows {
		msgs[idx] = row.String()
	}
	return "csv validation failed: " + strings.Join(msgs, "; ")
}

// Parse reads a date,value CSV into series points. The file must be strictly
// ascending by date with no duplicates and no non-positive values. Any
// invalid row rejects the entire file: a benchmark series is either fully
// imported or untouched.
func Parse(r io.Reader) ([]data.SeriesPoint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	points := make([]data.SeriesPoint, 0, 365)
	rowErrors := make([]RowError, 0)
	line := 0
	var prev date.Date

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			rowErrors = append(rowErrors, RowError{Line: line, Message: "malformed csv row"})
			continue
		}

		if len(record) != 2 {
			rowErrors = append(rowErrors, RowError{Line: line, Message: fmt.Sprintf("expected 2 fields, got %d", len(record))})
			continue
		}

		// a single header row is tolerated
		if line == 1 {
			if _, err := date.Parse(strings.TrimSpace(record[0])); err != nil {
				continue
			}
		}

		d, err := date.Parse(strings.TrimSpace(record[0]))
		if err != nil {
			rowErrors = append(rowErrors, RowError{Line: line, Message: fmt.Sprintf("invalid date %q", record[0])})
			continue
		}

		value, err := dec.FromString(strings.TrimSpace(record[1]))
		if err != nil {
			rowErrors = append(rowErrors, RowError{Line: line, Message: fmt.Sprintf("invalid value %q", record[1])})
			continue
		}
		if value.Sign() < 0 {
			rowErrors = append(rowErrors, RowError{Line: line, Message: fmt.Sprintf("negative value %q", record[1])})
			continue
		}

		if !prev.IsZero() {
			if d.Equal(prev) {
				rowErrors = append(rowErrors, RowError{Line: line, Message: fmt.Sprintf("duplicate date %s", d)})
				continue
			}
			if d.Before(prev) {
				rowErrors = append(rowErrors, RowError{Line: line, Message: fmt.Sprintf("date %s out of order", d)})
				continue
			}
		}
		prev = d

		points = append(points, data.SeriesPoint{Date: d, Value: value})
	}

	if len(rowErrors) > 0 {
		return nil, &ParseError{Rows: rowErrors}
	}
	if len(points) == 0 {
		return nil, &ParseError{Rows: []RowError{{Line: 0, Message: "no data rows"}}}
	}
	return points, nil
}
