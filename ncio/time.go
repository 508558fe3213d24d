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

package ncio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/oceandiag/xoce/array"
	"github.com/oceandiag/xoce/cftime"
)

// TimesAttr is the attribute under which decoded dates ([]cftime.Date)
// are stored on time coordinates.
const TimesAttr = "times"

// DecodeTimes decodes every coordinate whose units are of the form
// "<step> since <date>", storing the dates in its TimesAttr attribute.
// Coordinates in "months since" units cannot be decoded as durations and
// are decoded as whole month offsets instead; the returned list holds the
// names of coordinates decoded this way.
func DecodeTimes(ds *array.Dataset) (monthOffsets []string, err error) {
	for _, name := range ds.CoordNames() {
		c, _ := ds.Coord(name)
		units, ok := c.Attrs["units"].(string)
		if !ok || !strings.Contains(units, " since ") {
			continue
		}
		vals, err := c.Float64s()
		if err != nil {
			return nil, err
		}
		calendar, _ := c.Attrs["calendar"].(string)
		dates, err := cftime.Decode(units, calendar, vals)
		if errors.Is(err, cftime.ErrMonthsSince) {
			dates, err = cftime.DecodeMonthsSince(units, vals)
			monthOffsets = append(monthOffsets, name)
		}
		if err != nil {
			return nil, fmt.Errorf("ncio: decoding %s: %v", name, err)
		}
		c.Attrs[TimesAttr] = dates
	}
	return monthOffsets, nil
}
