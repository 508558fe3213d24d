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

package xoce

import (
	"fmt"
	"strings"
)

// NotFoundError is returned when a variable is neither stored in an
// Experiment nor calculable from its variables.
type NotFoundError struct {
	// Name is the requested variable.
	Name string

	// Available holds the variables of the Experiment at the time of
	// the request.
	Available []string

	// Err is the underlying cause, if any.
	Err error
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("xoce: '%s' is not a variable of the experiment. Available variables: [%s]",
		e.Name, strings.Join(e.Available, " "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// TypeError is returned when a value that is not an array is stored in
// an Experiment.
type TypeError struct {
	Name  string
	Value interface{}
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("xoce: values of '%s' should be a *array.DataArray, not %T", e.Name, e.Value)
}
