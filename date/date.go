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

// Package date provides a day-granularity date value. Every series point in
// the engine is keyed by one of these; all of them live at UTC midnight so
// that two processes computing the same day always agree on the key.
package date

import (
	"errors"
	"time"
)

// Format is the ISO-8601 day format used everywhere dates are serialized.
const Format = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date")

// Date represents a calendar day at UTC midnight.
type Date struct {
	y int
	m time.Month
	d int
}

// New returns a normalized Date for the given year, month and day.
func New(year int, month time.Month, day int) Date {
	d := Date{year, month, day}
	d.y, d.m, d.d = d.Time().Date()
	return d
}

// FromTime truncates t to its UTC calendar day.
func FromTime(t time.Time) Date {
	return New(t.UTC().Date())
}

// Parse reads an ISO-8601 day string.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Format, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return FromTime(t), nil
}

// Today returns the current UTC calendar day.
func Today() Date { return FromTime(time.Now()) }

// Time returns the canonical time.Time for the day (UTC midnight).
func (d Date) Time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

func (d Date) Year() int         { return d.y }
func (d Date) Month() time.Month { return d.m }
func (d Date) Day() int          { return d.d }

func (d Date) IsZero() bool { return d.y == 0 && d.m == 0 && d.d == 0 }

func (d Date) String() string { return d.Time().Format(Format) }

// Add returns the date i days later (or earlier when i is negative).
func (d Date) Add(i int) Date { return New(d.y, d.m, d.d+i) }

func (d Date) Before(x Date) bool { return d.Time().Before(x.Time()) }
func (d Date) After(x Date) bool  { return d.Time().After(x.Time()) }
func (d Date) Equal(x Date) bool  { return d == x }

// DaysUntil returns the number of days from d to x; negative when x is
// before d.
func (d Date) DaysUntil(x Date) int {
	return int(x.Time().Sub(d.Time()).Hours() / 24)
}

// Max returns the later of the non-zero dates. A zero date never wins.
func Max(dates ...Date) Date {
	var out Date
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		if out.IsZero() || d.After(out) {
			out = d
		}
	}
	return out
}

// Min returns the earlier of the non-zero dates.
func Min(dates ...Date) Date {
	var out Date
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		if out.IsZero() || d.Before(out) {
			out = d
		}
	}
	return out
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return ErrInvalidDate
	}
	parsed, err := Parse(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
