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

package cftime

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type calendar interface {
	add(ref Date, seconds float64) Date
}

func lookupCalendar(name string) (calendar, error) {
	switch strings.ToLower(name) {
	case "", "standard", "gregorian":
		return standard{}, nil
	case "proleptic_gregorian":
		return gregorian{}, nil
	case "noleap", "365_day":
		return fixedYear{leap: false}, nil
	case "all_leap", "366_day":
		return fixedYear{leap: true}, nil
	case "360_day":
		return day360{}, nil
	}
	return nil, fmt.Errorf("cftime: unsupported calendar %q", name)
}

// gregorian uses the proleptic Gregorian calendar for all dates.
type gregorian struct{}

func (gregorian) add(ref Date, seconds float64) Date {
	days := math.Floor(seconds / 86400)
	rem := seconds - days*86400
	whole, frac := math.Modf(ref.Second)
	t := time.Date(ref.Year, ref.Month, ref.Day, ref.Hour, ref.Minute, int(whole), int(frac*1e9), time.UTC)
	t = t.AddDate(0, 0, int(days)).Add(time.Duration(rem * float64(time.Second)))
	return Date{
		Year: t.Year(), Month: t.Month(), Day: t.Day(),
		Hour: t.Hour(), Minute: t.Minute(),
		Second: float64(t.Second()) + float64(t.Nanosecond())/1e9,
	}
}

// checker is implemented by calendars that cannot hold every date.
type checker interface {
	check(d Date) error
}

// gregorianReform is the first day of the Gregorian calendar.
var gregorianReform = Date{Year: 1582, Month: time.October, Day: 15}

// standard is the mixed Julian/Gregorian calendar. Only dates from the
// Gregorian reform on are supported; there it is the proleptic
// Gregorian calendar.
type standard struct{ gregorian }

func (standard) check(d Date) error {
	if d.before(gregorianReform) {
		return fmt.Errorf("%w: %v", ErrJulian, d)
	}
	return nil
}

var monthDays = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// fixedYear is a calendar in which every year has 365 days, or 366 if
// leap is set.
type fixedYear struct{ leap bool }

func (c fixedYear) days(m time.Month) int {
	if m == time.February && c.leap {
		return 29
	}
	return monthDays[m-1]
}

func (c fixedYear) yearDays() int {
	if c.leap {
		return 366
	}
	return 365
}

func (c fixedYear) dayOfYear(d Date) int {
	n := d.Day - 1
	for m := time.January; m < d.Month; m++ {
		n += c.days(m)
	}
	return n
}

func (c fixedYear) fromDayOfYear(year, n int) Date {
	m := time.January
	for n >= c.days(m) {
		n -= c.days(m)
		m++
	}
	return Date{Year: year, Month: m, Day: n + 1}
}

func (c fixedYear) add(ref Date, seconds float64) Date {
	return addDays(ref, seconds, c.yearDays(), c.dayOfYear, c.fromDayOfYear)
}

// day360 has twelve 30-day months.
type day360 struct{}

func (day360) add(ref Date, seconds float64) Date {
	return addDays(ref, seconds, 360,
		func(d Date) int { return int(d.Month-1)*30 + d.Day - 1 },
		func(year, n int) Date { return Date{Year: year, Month: time.Month(n/30 + 1), Day: n%30 + 1} })
}

// addDays adds seconds to ref in a calendar whose years all have
// yearDays days.
func addDays(ref Date, seconds float64, yearDays int, dayOfYear func(Date) int,
	fromDayOfYear func(year, n int) Date) Date {
	total := float64(dayOfYear(ref))*86400 + float64(ref.Hour*3600+ref.Minute*60) + ref.Second + seconds
	days := math.Floor(total / 86400)
	rem := total - days*86400
	year := ref.Year + floorDiv(int(days), yearDays)
	n := int(days) - yearDays*floorDiv(int(days), yearDays)
	d := fromDayOfYear(year, n)
	d.Hour = int(rem / 3600)
	d.Minute = int(math.Mod(rem, 3600) / 60)
	d.Second = rem - float64(d.Hour*3600+d.Minute*60)
	return d
}
