/*
Copyright © 2019 the gridcollect authors.
This file is part of gridcollect.

gridcollect is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gridcollect is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gridcollect.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package gridcollectutil contains the command-line interface for gridcollect.
package gridcollectutil

import (
	"fmt"
	"os"
	"time"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/gridcollect"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information and the command tree that uses it.
type Cfg struct {
	*viper.Viper

	Root, versionCmd, collectCmd, checkCmd, statusCmd *cobra.Command

	// Log is set up from the LogLevel option before any command runs.
	Log *logrus.Logger
}

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

// InitializeConfig creates the commands and configuration options.
func InitializeConfig() *Cfg {
	cfg := &Cfg{
		Viper: viper.New(),
		Log:   logrus.New(),
	}

	cfg.Root = &cobra.Command{
		Use:   "gridcollect",
		Short: "Collect simulation results into ASCII grids.",
		Long: `gridcollect receives per-cell simulation results, which workers deliver in
any order, and writes them row by row into ESRI ASCII grid files.
Use the subcommands specified below to access the functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'GRIDCOLLECT_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.setConfig(); err != nil {
				return err
			}
			return cfg.setLog(cmd)
		},
	}

	cfg.versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Long:  "version prints the version number of this version of gridcollect.",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("gridcollect v%s\n", gridcollect.Version)
		},
		DisableAutoGenTag: true,
	}

	cfg.collectCmd = &cobra.Command{
		Use:   "collect",
		Short: "Collect results into grid files.",
		Long: `collect receives results until a finish message arrives, every setup is
complete, or the input is exhausted, and writes each setup's grid files as
rows complete. It exits with a non-zero status if output directories
can't be created.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.collect(cmd)
		},
		DisableAutoGenTag: true,
	}

	cfg.checkCmd = &cobra.Command{
		Use:   "check [dir]",
		Short: "Check that grid files are complete.",
		Long: `check verifies that every .asc file in the given directory, or in the
output directory of each setup if no directory is given, has a valid header
followed by exactly nrows rows of ncols values.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.check(cmd, args)
		},
		DisableAutoGenTag: true,
	}

	cfg.statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the progress recorded in the ledger.",
		Long: `status prints the rows written and the setups completed by a collection
run, as recorded in LedgerFile. It can be used while collection is running.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.status(cmd)
		},
		DisableAutoGenTag: true,
	}

	options := []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of log messages that are printed:
              one of debug, info, warning, or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "SetupFile",
			usage: `
              SetupFile is the path to the TOML file listing the setups to collect
              results for and, optionally, the variables to write. It can include
              environment variables.`,
			defaultVal: "setups.toml",
			flagsets:   []*pflag.FlagSet{cfg.collectCmd.Flags(), cfg.checkCmd.Flags()},
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir is the directory grid files are written to. Each setup
              writes into a subdirectory named after its ID unless the setup file
              gives it its own OutputDir. It can include environment variables.`,
			defaultVal: "out",
			flagsets:   []*pflag.FlagSet{cfg.collectCmd.Flags(), cfg.checkCmd.Flags()},
		},
		{
			name: "AuditDir",
			usage: `
              AuditDir is the directory the CSV audit logs of the individual
              results are written to, in a subdirectory per setup. No audit logs
              are written if it is empty.`,
			defaultVal: "csv-out",
			flagsets:   []*pflag.FlagSet{cfg.collectCmd.Flags()},
		},
		{
			name: "Transport",
			usage: `
              Transport specifies how results are received: "stdin" or "file" for
              one JSON message per line, "websocket" for a websocket endpoint at
              Addr/results, or "rpc" for net/rpc calls to Collector.Submit at Addr.`,
			shorthand:  "t",
			defaultVal: "stdin",
			flagsets:   []*pflag.FlagSet{cfg.collectCmd.Flags()},
		},
		{
			name: "Input",
			usage: `
              Input is the file results are read from when Transport is "file".`,
			shorthand:  "i",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.collectCmd.Flags()},
		},
		{
			name: "Addr",
			usage: `
              Addr is the address the websocket and rpc transports listen on.`,
			defaultVal: ":6060",
			flagsets:   []*pflag.FlagSet{cfg.collectCmd.Flags()},
		},
		{
			name: "ReceiveTimeout",
			usage: `
              ReceiveTimeout is how long the websocket and rpc transports wait for
              a message before reporting a timeout, e.g. "90s". Zero waits forever.`,
			defaultVal: "5m",
			flagsets:   []*pflag.FlagSet{cfg.collectCmd.Flags()},
		},
		{
			name: "ForceOnFinish",
			usage: `
              ForceOnFinish specifies whether setups that are still incomplete when
              collection ends are completed anyway, with missing cells written as
              no-data. If false, their grid files are left short.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{cfg.collectCmd.Flags()},
		},
		{
			name: "LedgerFile",
			usage: `
              LedgerFile is the path of the SQLite database progress is recorded
              in. No progress is recorded if it is empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.collectCmd.Flags(), cfg.statusCmd.Flags()},
		},
		{
			name: "RunID",
			usage: `
              RunID is the run status reports on. The default is the most
              recently started run.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.statusCmd.Flags()},
		},
		{
			name: "ArchiveBucket",
			usage: `
              ArchiveBucket is the blob storage location the grid files of each
              completed setup are copied to, e.g. "s3://bucket/grids",
              "gs://bucket" or "file:///srv/archive". Files are not copied if
              it is empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.collectCmd.Flags()},
		},
	}

	// Set the prefix for configuration environment variables.
	cfg.SetEnvPrefix("GRIDCOLLECT")
	cfg.AutomaticEnv()

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
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}

	// Link the commands together.
	cfg.Root.AddCommand(cfg.versionCmd)
	cfg.Root.AddCommand(cfg.collectCmd)
	cfg.Root.AddCommand(cfg.checkCmd)
	cfg.Root.AddCommand(cfg.statusCmd)
	return cfg
}

// setConfig finds and reads in the configuration file, if there is one.
func (cfg *Cfg) setConfig() error {
	if cfgpath := cfg.GetString("config"); cfgpath != "" {
		cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("gridcollect: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// setLog configures the logger to write to the command's error output.
func (cfg *Cfg) setLog(cmd *cobra.Command) error {
	level, err := logrus.ParseLevel(cfg.GetString("LogLevel"))
	if err != nil {
		return fmt.Errorf("gridcollect: LogLevel: %v", err)
	}
	cfg.Log.SetLevel(level)
	cfg.Log.SetOutput(cmd.ErrOrStderr())
	cfg.Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
	})
	return nil
}

// expand returns the string option with the given name with environment
// variables expanded.
func (cfg *Cfg) expand(name string) string {
	return os.ExpandEnv(cfg.GetString(name))
}
