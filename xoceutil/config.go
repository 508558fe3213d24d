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

package xoceutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lnashier/viper"
	"github.com/oceandiag/xoce"
	"github.com/oceandiag/xoce/calc"
	"github.com/oceandiag/xoce/calc/expr"
	"github.com/oceandiag/xoce/fetch"
	"github.com/spf13/cast"
)

// OpenExperiment creates and loads the experiment described by cfg.
// Remote inputs are downloaded by the returned Downloader, which the
// caller should clean up once the experiment is no longer needed.
func OpenExperiment(ctx context.Context, cfg *viper.Viper) (*xoce.Experiment, *fetch.Downloader, error) {
	d := new(fetch.Downloader)
	kind := xoce.Kind(strings.ToLower(cfg.GetString("Experiment.Type")))
	reg, err := xoce.DefaultRegistry(kind)
	if err != nil {
		return nil, d, err
	}
	if path := os.ExpandEnv(cfg.GetString("Experiment.Registry")); path != "" {
		r, err := xoce.LoadRegistryFile(path)
		if err != nil {
			return nil, d, err
		}
		reg = reg.Merge(r)
	}

	formulas := calc.DefaultRegistry()
	derived, err := GetStringMapString("Derived", cfg)
	if err != nil {
		return nil, d, err
	}
	if err := expr.Register(formulas, expandStringMap(derived)); err != nil {
		return nil, d, err
	}

	mesh := os.ExpandEnv(cfg.GetString("Experiment.Mesh"))
	if mesh != "" {
		if mesh, err = d.MaybeDownload(ctx, mesh); err != nil {
			return nil, d, err
		}
	}

	var store xoce.Store
	switch kind {
	case xoce.KindNEMO:
		files := expandStringSlice(cast.ToStringSlice(cfg.Get("Experiment.Files")))
		if len(files) == 0 {
			return nil, d, fmt.Errorf("xoce: no output files specified. Please fill in the Experiment.Files configuration and try again")
		}
		if files, err = d.MaybeDownloadAll(ctx, files); err != nil {
			return nil, d, err
		}
		store = &xoce.SingleDatasetStore{Paths: files, Mesh: mesh}
	case xoce.KindCMIP:
		dir := os.ExpandEnv(cfg.GetString("Experiment.Dir"))
		if dir == "" {
			return nil, d, fmt.Errorf("xoce: no directory specified. Please fill in the Experiment.Dir configuration and try again")
		}
		if fetch.IsRemote(dir) {
			return nil, d, fmt.Errorf("xoce: Experiment.Dir must be a local directory, not %s", dir)
		}
		store = &xoce.CMIPStore{Dir: dir, Mesh: mesh}
	}

	e := xoce.New(store, reg, formulas)
	e.UnusedDims = cast.ToStringSlice(cfg.Get("Experiment.UnusedDims"))
	replace, err := GetStringMapString("Experiment.Replace", cfg)
	if err != nil {
		return nil, d, err
	}
	if err := e.Load(xoce.LoadOptions{Replace: replace}); err != nil {
		return nil, d, err
	}
	return e, d, nil
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// expandStringMap removes end lines and expands environment variables in
// the keys and values of m.
func expandStringMap(m map[string]string) map[string]string {
	o := make(map[string]string, len(m))
	for k, v := range m {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		o[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return o
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expands any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output file configuration variable (for example: OutputFile="output.nc")`)
	}
	f = os.ExpandEnv(f)
	if fetch.IsBlob(f) {
		return f, nil
	}
	if _, err := os.Stat(filepath.Dir(f)); err != nil {
		return f, fmt.Errorf("xoce: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return map[string]string{}, nil
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapString(v), nil
	case string:
		o := make(map[string]string)
		if strings.TrimSpace(v) == "" {
			return o, nil
		}
		if err := json.NewDecoder(bytes.NewBufferString(v)).Decode(&o); err != nil {
			return nil, fmt.Errorf("xoce: invalid value for %s: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("xoce: invalid type for %s: %#v", varName, i)
	}
}
