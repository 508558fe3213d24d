/*
Copyright © 2020 the xoce authors.
This file is part of xoce.

xoce is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

xoce is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with xoce.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package cftime decodes CF-convention time coordinates
// ("days since 1850-01-01") in the calendars used by ocean and climate
// models.
package cftime

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrMonthsSince is returned by Decode for "months since" units, which
// have no fixed length. Use DecodeMonthsSince instead.
var ErrMonthsSince = errors.New("cftime: months since a reference date cannot be decoded as a duration")

// ErrJulian is returned by Decode for dates of the standard calendar
// before 1582-10-15, which are Julian dates. Use proleptic_gregorian to
// extend the Gregorian calendar backwards.
var ErrJulian = errors.New("cftime: dates before 1582-10-15 in the standard calendar are not supported")

// Date is a calendar date and time. Unlike time.Time it can hold dates
// that only exist in model calendars, such as February 30 in the 360_day
// calendar.
type Date struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second float64
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", d.Year, int(d.Month), d.Day,
		d.Hour, d.Minute, int(d.Second))
}

func (d Date) before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// Units is a parsed CF time units string.
type Units struct {
	// Step is the length of one unit in seconds; zero for months.
	Step float64
	// Months is true for "months since" units.
	Months bool
	Ref    Date
}

var steps = map[string]float64{
	"second": 1, "seconds": 1, "sec": 1, "secs": 1, "s": 1,
	"minute": 60, "minutes": 60, "min": 60, "mins": 60,
	"hour": 3600, "hours": 3600, "hr": 3600, "hrs": 3600, "h": 3600,
	"day": 86400, "days": 86400, "d": 86400,
}

// ParseUnits parses units such as "days since 1850-01-01 00:00:00".
func ParseUnits(units string) (Units, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return Units{}, fmt.Errorf("cftime: invalid time units %q", units)
	}
	var u Units
	step := strings.ToLower(strings.TrimSpace(parts[0]))
	switch step {
	case "month", "months":
		u.Months = true
	default:
		s, ok := steps[step]
		if !ok {
			return Units{}, fmt.Errorf("cftime: unknown time step %q", parts[0])
		}
		u.Step = s
	}
	ref, err := parseRef(strings.TrimSpace(parts[1]))
	if err != nil {
		return Units{}, fmt.Errorf("cftime: %q: %v", units, err)
	}
	u.Ref = ref
	return u, nil
}

func parseRef(s string) (Date, error) {
	s = strings.Replace(s, "T", " ", 1)
	s = strings.TrimSuffix(s, "Z")
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Date{}, fmt.Errorf("missing reference date")
	}
	var d Date
	var m int
	if _, err := fmt.Sscanf(fields[0], "%d-%d-%d", &d.Year, &m, &d.Day); err != nil {
		return Date{}, fmt.Errorf("invalid reference date %q", fields[0])
	}
	d.Month = time.Month(m)
	if len(fields) > 1 {
		clock := strings.Split(fields[1], ":")
		vals := make([]float64, 3)
		for i := 0; i < len(clock) && i < 3; i++ {
			if _, err := fmt.Sscanf(clock[i], "%g", &vals[i]); err != nil {
				return Date{}, fmt.Errorf("invalid reference time %q", fields[1])
			}
		}
		d.Hour, d.Minute, d.Second = int(vals[0]), int(vals[1]), vals[2]
	}
	return d, nil
}

// Decode converts time values in the given units and calendar into
// dates. Supported calendars are standard, gregorian,
// proleptic_gregorian, noleap, 365_day, all_leap, 366_day and 360_day;
// an empty calendar means standard. Standard and gregorian dates before
// 1582-10-15, including the reference date, return ErrJulian.
func Decode(units, calendar string, values []float64) ([]Date, error) {
	u, err := ParseUnits(units)
	if err != nil {
		return nil, err
	}
	if u.Months {
		return nil, ErrMonthsSince
	}
	cal, err := lookupCalendar(calendar)
	if err != nil {
		return nil, err
	}
	c, checked := cal.(checker)
	if checked {
		if err := c.check(u.Ref); err != nil {
			return nil, err
		}
	}
	out := make([]Date, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("cftime: cannot decode missing time value at index %d", i)
		}
		out[i] = cal.add(u.Ref, v*u.Step)
		if checked {
			if err := c.check(out[i]); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// DecodeMonthsSince decodes integer month offsets from the reference
// date of "months since" units. Fractional offsets are truncated.
func DecodeMonthsSince(units string, values []float64) ([]Date, error) {
	u, err := ParseUnits(units)
	if err != nil {
		return nil, err
	}
	if !u.Months {
		return nil, fmt.Errorf("cftime: %q are not months since a reference date", units)
	}
	out := make([]Date, len(values))
	for i, v := range values {
		m := int(u.Ref.Month) - 1 + int(v)
		d := u.Ref
		d.Year += floorDiv(m, 12)
		d.Month = time.Month(m-12*floorDiv(m, 12)) + 1
		out[i] = d
	}
	return out, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
