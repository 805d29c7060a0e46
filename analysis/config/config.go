// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	b, err := os.ReadFile(configFile)
	if err != nil {
		return nil, errors.Wrap(err, "could not read config file")
	}
	return Load(configFile, b)
}

// Config contains the options of the thread-escape analysis and of the tools built on top of it.
// To add elements to a config file, add fields to this struct.
// If some field is not defined in the config file, it will be empty/zero in the struct.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options `yaml:"options"`

	sourceFile string

	// if the PkgFilter is specified
	pkgFilterRegex *regexp.Regexp

	// queryTimeout is the parsed value of QueryTimeout
	queryTimeout time.Duration
}

// Options holds the tuning parameters of the analysis.
type Options struct {
	// ReportsDir is the directory where all the reports will be stored. If the yaml config file this config struct has
	// been loaded does not specify a ReportsDir but sets ReportResults to true, then ReportsDir will be created
	// in the folder of the config file.
	ReportsDir string `yaml:"reports-dir"`

	// ReportResults specifies whether the escaping and local instruction sets should be written to files in the
	// reports directory.
	ReportResults bool `yaml:"report-results"`

	// PkgFilter is a filter for the Go front end: only functions whose package matches are lowered into the
	// analyzed program, all other functions are treated as unknown code.
	PkgFilter string `yaml:"pkg-filter"`

	// QueryTimeout is a duration string (e.g. "30s"). When non-empty, a query that has not reached its fixed point
	// after that time is reported as timed out, which is treated as escaping.
	QueryTimeout string `yaml:"query-timeout"`

	// MaxPathEdges bounds the number of path edges a single query may create. A query exceeding the bound is
	// treated like a timed out query. If MaxPathEdges <= 0, it is ignored.
	MaxPathEdges int `yaml:"max-path-edges"`

	// KillPolicy decides how stores of local objects into escaping locations are handled: "propagate"
	// computes the escape closure of the stored objects, "reset" conservatively marks everything escaping.
	KillPolicy KillPolicy `yaml:"kill-policy"`

	// KillMerge decides how a caller state is merged with a killed callee summary: "escalate" makes every
	// non-empty caller variable escaping, "join" keeps the sites the callee did not escape.
	KillMerge KillMerge `yaml:"kill-merge"`

	// ContextDepth is the length of the call strings used as contexts. 0 means context-insensitive.
	ContextDepth int `yaml:"context-depth"`

	// Parallelism is the number of queries analyzed concurrently. Values <= 0 mean one.
	Parallelism int `yaml:"parallelism"`

	// EarlyExit stops a query as soon as all of its instructions are known to be escaping.
	EarlyExit bool `yaml:"early-exit"`

	// CheckInvariants checks the well-formedness of every abstract state created by the analysis. This is slow and
	// is only meant for debugging.
	CheckInvariants bool `yaml:"check-invariants"`

	// Loglevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`
}

// NewDefault returns a default config.
func NewDefault() *Config {
	return &Config{
		sourceFile: "",
		Options: Options{
			ReportsDir:      "",
			ReportResults:   false,
			PkgFilter:       "",
			QueryTimeout:    "",
			MaxPathEdges:    0,
			KillPolicy:      KillPropagate,
			KillMerge:       KillEscalate,
			ContextDepth:    DefaultContextDepth,
			Parallelism:     1,
			EarlyExit:       true,
			CheckInvariants: false,
			LogLevel:        int(InfoLevel),
		},
	}
}

// Load reads a configuration from its contents b. The filename is used to resolve the paths in the config that are
// relative to the config file.
func Load(filename string, b []byte) (*Config, error) {
	cfg := NewDefault()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, errors.Wrapf(err, "could not unmarshal config file %s", filename)
	}

	cfg.sourceFile = filename

	if cfg.ReportResults {
		if err := setReportsDir(cfg, filename); err != nil {
			return nil, err
		}
	}

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}

	if cfg.KillPolicy == "" {
		cfg.KillPolicy = KillPropagate
	}
	if !cfg.KillPolicy.valid() {
		return nil, errors.Errorf("invalid kill-policy %q, expected %q or %q", cfg.KillPolicy, KillPropagate, KillReset)
	}

	if cfg.KillMerge == "" {
		cfg.KillMerge = KillEscalate
	}
	if !cfg.KillMerge.valid() {
		return nil, errors.Errorf("invalid kill-merge %q, expected %q or %q", cfg.KillMerge, KillEscalate, KillJoin)
	}

	if cfg.ContextDepth < 0 {
		return nil, errors.Errorf("invalid context-depth %d", cfg.ContextDepth)
	}

	if cfg.QueryTimeout != "" {
		d, err := time.ParseDuration(cfg.QueryTimeout)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid query-timeout %q", cfg.QueryTimeout)
		}
		cfg.queryTimeout = d
	}

	cfg.SetPkgFilter(cfg.PkgFilter)

	return cfg, nil
}

// SetPkgFilter overrides the package filter. A filter that is not a valid regex is matched as a prefix.
func (c *Config) SetPkgFilter(filter string) {
	c.PkgFilter = filter
	c.pkgFilterRegex = nil
	if filter != "" {
		r, err := regexp.Compile(filter)
		if err == nil {
			c.pkgFilterRegex = r
		}
	}
}

func setReportsDir(c *Config, filename string) error {
	if c.ReportsDir == "" {
		tmpdir, err := os.MkdirTemp(path.Dir(filename), "*-report")
		if err != nil {
			return errors.Wrap(err, "could not create temp dir for reports")
		}
		c.ReportsDir = tmpdir
	} else {
		err := os.Mkdir(c.ReportsDir, 0750)
		if err != nil {
			if !os.IsExist(err) {
				return errors.Wrapf(err, "could not create directory %s", c.ReportsDir)
			}
		}
	}
	return nil
}

// RelPath returns filename path relative to the config source file
func (c *Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// MatchPkgFilter returns true if the package name pkgname matches the package filter set in the config file. If no
// package filter has been set in the config file, the regex will match anything and return true. This function safely
// considers the case where a filter has been specified by the user, but it could not be compiled to a regex. The safe
// case is to check whether the package filter string is a prefix of the pkgname
func (c *Config) MatchPkgFilter(pkgname string) bool {
	if c.pkgFilterRegex != nil {
		return c.pkgFilterRegex.MatchString(pkgname)
	} else if c.PkgFilter != "" {
		return strings.HasPrefix(pkgname, c.PkgFilter)
	} else {
		return true
	}
}

// Timeout returns the per-query timeout, or 0 if queries are not bounded in time.
func (c *Config) Timeout() time.Duration {
	return c.queryTimeout
}

// SetTimeout overrides the per-query timeout.
func (c *Config) SetTimeout(d time.Duration) {
	c.queryTimeout = d
	c.QueryTimeout = d.String()
}

// Verbose returns true is the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c *Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}

// ExceedsMaxPathEdges returns true if n exceeds the path edge bound of the configuration.
// (if the configuration setting is <= 0, then this returns false)
func (c *Config) ExceedsMaxPathEdges(n int) bool {
	if c.MaxPathEdges <= 0 {
		return false
	}
	return n > c.MaxPathEdges
}

// Workers returns the number of queries that can run concurrently.
func (c *Config) Workers() int {
	if c.Parallelism <= 0 {
		return 1
	}
	return c.Parallelism
}
