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

// Package xoceutil holds the command-line interface to xoce.
package xoceutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lnashier/viper"
	"github.com/oceandiag/xoce"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to xoce.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of log messages to print
              (debug, info, warning or error).`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Experiment.Type",
			usage: `
              Experiment.Type is the kind of model output to read: "nemo" for
              a set of NEMO output files read as one dataset, or "cmip" for a
              directory tree of CMIP6 files.`,
			shorthand:  "t",
			defaultVal: "nemo",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Experiment.Files",
			usage: `
              Experiment.Files lists the NEMO output files, which may contain
              glob patterns, environment variables, or be URLs or blob storage
              locations (gs://, s3://, file://).`,
			shorthand:  "f",
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Experiment.Dir",
			usage: `
              Experiment.Dir is the root of the CMIP6 directory tree.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Experiment.Mesh",
			usage: `
              Experiment.Mesh is the NEMO mesh mask file holding the grid
              geometry. It may be empty.`,
			shorthand:  "m",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Experiment.UnusedDims",
			usage: `
              Experiment.UnusedDims lists dimensions that are collapsed to
              their first index whenever a variable is read.`,
			defaultVal: []string{"t"},
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Experiment.Replace",
			usage: `
              Experiment.Replace maps field names to the names of fields whose
              values should replace them when loading, for example
              {"e3t":"e3t_0"}.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Experiment.Registry",
			usage: `
              Experiment.Registry is an optional TOML file with [names] and
              [dim_coordinates] tables extending the default naming registry.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Derived",
			usage: `
              Derived maps the names of additional derived variables to
              expressions of other variables, for example
              {"speed":"sqrt(uo**2 + vo**2)"}.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to write output to. It may be a blob
              storage location.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{extractCmd.Flags(), profileCmd.Flags()},
		},
		{
			name: "Profile.Dim",
			usage: `
              Profile.Dim is the dimension along which profiles are plotted.
              All other dimensions are reduced to their first index.`,
			defaultVal: "depth",
			flagsets:   []*pflag.FlagSet{profileCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("XOCE")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := strings.TrimSpace(b.String())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(varsCmd)
	Root.AddCommand(describeCmd)
	Root.AddCommand(statsCmd)
	Root.AddCommand(extractCmd)
	Root.AddCommand(profileCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets the log level.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("xoce: problem reading configuration file: %v", err)
		}
	}
	lvl, err := logrus.ParseLevel(cast.ToString(Cfg.Get("LogLevel")))
	if err != nil {
		return fmt.Errorf("xoce: invalid LogLevel: %v", err)
	}
	logrus.SetLevel(lvl)
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "xoce",
	Short: "Access and diagnose ocean model output.",
	Long: `xoce reads NEMO and CMIP6 ocean model output, harmonizes variable
names and coordinates, and calculates derived variables such as density and
the squared Brunt-Vaisala frequency on request.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'XOCE_var' where 'var' is the
name of the variable to be set. Paths may contain environment variables.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of xoce.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("xoce v%s\n", xoce.Version)
	},
	DisableAutoGenTag: true,
}

var varsCmd = &cobra.Command{
	Use:   "vars",
	Short: "List the available variables",
	Long: `vars lists the variables of the experiment, marking with '*' the
ones that are not stored but can be calculated from the others.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExperiment(context.TODO(), func(e *xoce.Experiment) error {
			return Vars(cmd.OutOrStdout(), e)
		})
	},
	DisableAutoGenTag: true,
}

var describeCmd = &cobra.Command{
	Use:   "describe VAR...",
	Short: "Describe variables",
	Long: `describe prints the dimensions, coordinates and attributes of the
named variables, calculating them if necessary.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExperiment(context.TODO(), func(e *xoce.Experiment) error {
			return Describe(cmd.OutOrStdout(), e, args)
		})
	},
	DisableAutoGenTag: true,
}

var statsCmd = &cobra.Command{
	Use:   "stats VAR...",
	Short: "Print summary statistics of variables",
	Long: `stats prints the number of valid values and their minimum, maximum,
mean and standard deviation for each of the named variables.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExperiment(context.TODO(), func(e *xoce.Experiment) error {
			return Stats(cmd.OutOrStdout(), e, args)
		})
	},
	DisableAutoGenTag: true,
}

var extractCmd = &cobra.Command{
	Use:   "extract VAR...",
	Short: "Write variables to a NetCDF file",
	Long: `extract writes the named variables, with their coordinates, to the
NetCDF file given by OutputFile. Derived variables are calculated first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		return withExperiment(context.TODO(), func(e *xoce.Experiment) error {
			return Extract(context.TODO(), e, args, out)
		})
	},
	DisableAutoGenTag: true,
}

var profileCmd = &cobra.Command{
	Use:   "profile VAR",
	Short: "Plot a profile of a variable",
	Long: `profile plots the named variable along Profile.Dim, taking the first
index of every other dimension, and saves the plot to OutputFile. The
image format follows the file extension.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		return withExperiment(context.TODO(), func(e *xoce.Experiment) error {
			return Profile(context.TODO(), e, args[0], Cfg.GetString("Profile.Dim"), out)
		})
	},
	DisableAutoGenTag: true,
}

// withExperiment opens the configured experiment, calls f with it and
// removes any downloaded files afterwards.
func withExperiment(ctx context.Context, f func(*xoce.Experiment) error) error {
	e, d, err := OpenExperiment(ctx, Cfg)
	if d != nil {
		defer d.Cleanup()
	}
	if err != nil {
		return err
	}
	return f(e)
}
