/*
Copyright © 2024 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package iopconfig

import (
	"fmt"
	"math"
	"os"

	"github.com/kr/pretty"
	"github.com/lnashier/viper"
	"github.com/spatialmodel/iop"
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
	// Options are the configuration options available to the iop command.
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
			name: "log_level",
			usage: `
              log_level specifies the logging level: one of debug, info,
              warning, or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "iop_file",
			usage: `
              iop_file specifies the path to the intensive observation
              period (IOP) forcing file in NetCDF format.`,
			shorthand:  "f",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{inspectCmd.Flags(), runCmd.Flags(), synthCmd.Flags()},
		},
		{
			name: "doubly_periodic_mode",
			usage: `
              doubly_periodic_mode specifies whether the model is run as a
              doubly periodic column. It must be true to use forcing data.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{inspectCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "target_latitude",
			usage: `
              target_latitude specifies the latitude of the observation
              column [degrees, -90 to 90]. It must match the forcing file.`,
			defaultVal: math.NaN(),
			flagsets:   []*pflag.FlagSet{inspectCmd.Flags(), runCmd.Flags(), synthCmd.Flags()},
		},
		{
			name: "target_longitude",
			usage: `
              target_longitude specifies the longitude of the observation
              column [degrees, 0 to 360]. It must match the forcing file.`,
			defaultVal: math.NaN(),
			flagsets:   []*pflag.FlagSet{inspectCmd.Flags(), runCmd.Flags(), synthCmd.Flags()},
		},
		{
			name: "iop_srf_prop",
			usage: `
              iop_srf_prop specifies whether surface fluxes and temperature
              are taken from the forcing file.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{inspectCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "iop_dosubsidence",
			usage: `
              iop_dosubsidence specifies whether large-scale subsidence is
              applied.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{inspectCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "iop_coriolis",
			usage: `
              iop_coriolis specifies whether Coriolis forcing is applied.
              It requires the large-scale winds u_ls and v_ls in the
              forcing file.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{inspectCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "iop_nudge_tq",
			usage: `
              iop_nudge_tq specifies whether temperature and moisture are
              nudged toward the forcing data.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{inspectCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "iop_nudge_uv",
			usage: `
              iop_nudge_uv specifies whether winds are nudged toward the
              forcing data.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{inspectCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "iop_nudge_tq_low",
			usage: `
              iop_nudge_tq_low specifies the highest pressure [mb] at which
              temperature and moisture are nudged.`,
			defaultVal: 1050.0,
			flagsets:   []*pflag.FlagSet{inspectCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "iop_nudge_tq_high",
			usage: `
              iop_nudge_tq_high specifies the lowest pressure [mb] at which
              temperature and moisture are nudged.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{inspectCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "iop_nudge_tscale",
			usage: `
              iop_nudge_tscale specifies the nudging time scale [s].`,
			defaultVal: 10800.0,
			flagsets:   []*pflag.FlagSet{inspectCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "zero_non_iop_tracers",
			usage: `
              zero_non_iop_tracers specifies whether all tracers are set
              to zero before the forcing data is copied into the model state.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{inspectCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "initial_conditions",
			usage: `
              initial_conditions specifies the path to a NetCDF file holding
              the model hybrid level coefficients hyam and hybm, and
              optionally initial values of the model state on an ncol grid.`,
			shorthand:  "i",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{inspectCmd.Flags(), runCmd.Flags(), synthCmd.Flags()},
		},
		{
			name: "ic_fields",
			usage: `
              ic_fields specifies the model state fields that are read from
              the column of the initial condition file nearest to the target
              location before the run starts.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "columns",
			usage: `
              columns specifies the number of model columns.`,
			defaultVal: 4,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "start_time",
			usage: `
              start_time specifies the start of the run in RFC 3339 format.
              The default is the forcing file base date.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{inspectCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "time_step",
			usage: `
              time_step specifies the model time step, for example "20m".`,
			defaultVal: "20m",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "duration",
			usage: `
              duration specifies the length of the run, for example "6h".`,
			defaultVal: "1h",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "output_file",
			usage: `
              output_file specifies the path of the NetCDF file that the
              model state in the first column is written to at every step.`,
			shorthand:  "o",
			defaultVal: "iop_output.nc",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "verbose",
			usage: `
              verbose specifies whether to print all configuration options.`,
			shorthand:  "v",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{inspectCmd.Flags()},
		},
		{
			name: "synth.base_date",
			usage: `
              synth.base_date specifies the base date of the synthetic
              forcing file as YYYYMMDD.`,
			defaultVal: 19950718,
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "synth.time_slots",
			usage: `
              synth.time_slots specifies the number of time slots in the
              synthetic forcing file.`,
			defaultVal: 4,
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "synth.interval",
			usage: `
              synth.interval specifies the spacing of the synthetic forcing
              file time slots, for example "3h".`,
			defaultVal: "3h",
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "synth.levels",
			usage: `
              synth.levels specifies the number of pressure levels in the
              synthetic forcing file.`,
			defaultVal: 18,
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "synth.model_levels",
			usage: `
              synth.model_levels specifies the number of hybrid levels in
              the synthetic initial condition file.`,
			defaultVal: 10,
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "synth.columns",
			usage: `
              synth.columns specifies the number of columns in the synthetic
              initial condition file.`,
			defaultVal: 9,
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("IOP")

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
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
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
	Root.AddCommand(inspectCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(synthCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("iop: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "iop",
	Short: "Single-column forcing from intensive observation period data.",
	Long: `iop supplies forcing data from an intensive observation period (IOP)
file to a doubly periodic single-column model. It interpolates the forcing
profiles onto the model's hybrid pressure levels and copies them into every
model column. Use the subcommands specified below to access the functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'IOP_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of iop.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("iop v%s\n", iop.Version)
	},
	DisableAutoGenTag: true,
}

// inspectCmd describes a forcing file.
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Describe a forcing file.",
	Long: `inspect checks a forcing file against the configuration and prints the
forcing fields it holds, its time slots, and how its pressure levels overlap
the model levels at the start of the run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := OptionsFromConfig(Cfg)
		if err != nil {
			return err
		}
		log, err := newLogger(Cfg, cmd.OutOrStderr())
		if err != nil {
			return err
		}
		if Cfg.GetBool("verbose") {
			fmt.Fprintf(cmd.OutOrStdout(), "%# v\n", pretty.Formatter(opts))
		}
		return Inspect(cmd.OutOrStdout(), opts, Cfg.GetString("initial_conditions"), Cfg.GetString("start_time"), log)
	},
	DisableAutoGenTag: true,
}

// runCmd steps a model state through the forcing period.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Apply forcing data to a model state.",
	Long: `run builds a model state with the hybrid levels in the initial condition
file, and then steps it through the forcing period. At every step the forcing
data is reloaded if the step is in a new forcing file time slot, and copied into
every model column. The state of the first column is written to output_file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := OptionsFromConfig(Cfg)
		if err != nil {
			return err
		}
		log, err := newLogger(Cfg, cmd.OutOrStderr())
		if err != nil {
			return err
		}
		rc, err := runConfigFromConfig(Cfg)
		if err != nil {
			return err
		}
		return Run(opts, rc, log)
	},
	DisableAutoGenTag: true,
}

// synthCmd writes a synthetic forcing file.
var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Write synthetic forcing and initial condition files.",
	Long: `synth writes a synthetic forcing file at the target location to iop_file,
and a matching initial condition file to initial_conditions. The files can be
used to try out the other subcommands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := synthConfigFromConfig(Cfg)
		if err != nil {
			return err
		}
		if err = Synth(sc); err != nil {
			return err
		}
		cmd.Printf("wrote %s and %s\n", sc.IOPFile, sc.InitialConditions)
		return nil
	},
	DisableAutoGenTag: true,
}

// expand expands environment variables in path.
func expand(path string) string { return os.ExpandEnv(path) }
