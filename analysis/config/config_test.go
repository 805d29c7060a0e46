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
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
)

//go:embed testdata
var testfsys embed.FS

func loadFromTestDir(filename string) (string, *Config, error) {
	filename = filepath.Join("testdata", filename)
	b, err := testfsys.ReadFile(filename)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read file %v: %v", filename, err)
	}
	config, err := Load(filename, b)
	if err != nil {
		return filename, nil, fmt.Errorf("failed to load file %v: %v", filename, err)
	}
	return filename, config, err
}

func TestNewDefault(t *testing.T) {
	c := NewDefault()
	if c.KillPolicy != KillPropagate {
		t.Errorf("Default kill policy should be %q", KillPropagate)
	}
	if c.KillMerge != KillEscalate {
		t.Errorf("Default kill merge should be %q", KillEscalate)
	}
	if c.ContextDepth != DefaultContextDepth {
		t.Errorf("Default context depth should be %d", DefaultContextDepth)
	}
	if c.Timeout() != 0 {
		t.Errorf("Default timeout should be zero")
	}
	if c.Workers() != 1 {
		t.Errorf("Default parallelism should be 1")
	}
	if !c.EarlyExit {
		t.Errorf("Early exit should be on by default")
	}
	if c.ExceedsMaxPathEdges(1 << 30) {
		t.Errorf("Default config should not bound path edges")
	}
}

func TestLoadBadFormatFileReturnsError(t *testing.T) {
	name := filepath.Join("testdata", "bad_format.yaml")
	b, err := testfsys.ReadFile(name)
	if err != nil {
		t.Fatalf("failed to read file %v: %v", name, err)
	}
	config, err := Load(name, b)
	if config != nil || err == nil {
		t.Errorf("Expected error and nil value when trying to load a badly formatted file.")
	}
}

func TestLoadInvalidOptionsReturnError(t *testing.T) {
	for _, name := range []string{"bad_kill_policy.yaml", "bad_timeout.yaml"} {
		_, config, err := loadFromTestDir(name)
		if config != nil || err == nil {
			t.Errorf("Expected error and nil value when loading %s", name)
		}
	}
}

func TestLoadWithReportNoDirReturnsError(t *testing.T) {
	_, config, err := loadFromTestDir("config_with_reports_bad_dir.yaml")
	if config != nil || err == nil {
		t.Errorf("Expected error and nil value when trying to load config with a report dir that has a non-existing" +
			"directory name")
	}
}

func TestLoadErrorsKeepTheirCause(t *testing.T) {
	b := []byte("options:\n  report-results: true\n  reports-dir: \"does/not/exist/reports\"\n")
	_, err := Load("inline.yaml", b)
	if err == nil {
		t.Fatalf("Expected error when the reports directory cannot be created")
	}
	if !os.IsNotExist(errors.Cause(err)) {
		t.Errorf("Expected the cause of %q to be a missing parent directory", err)
	}
	if !strings.Contains(err.Error(), "could not create directory does/not/exist/reports") {
		t.Errorf("Unexpected error message %q", err)
	}
}

func TestLoadWithNoSpecifiedReportsDir(t *testing.T) {
	fileName, config, err := loadFromTestDir("config_with_reports_no_dir_spec.yaml")
	if config == nil || err != nil {
		t.Errorf("Could not load %q", fileName)
		return
	}
	if config.ReportsDir == "" {
		t.Errorf("Expected reports-dir to be non-empty after loading config %q", fileName)
	}
	if !strings.HasSuffix(config.ReportsDir, "-report") {
		t.Errorf("Expected generated reports-dir to end with -report, got %q", config.ReportsDir)
	}
	// Remove temporary files
	os.Remove(config.ReportsDir)
}

func TestLoadMinimalUsesDefaults(t *testing.T) {
	fileName, config, err := loadFromTestDir("minimal.yaml")
	if err != nil {
		t.Fatalf("Could not load %q: %v", fileName, err)
	}
	if config.ContextDepth != 1 {
		t.Errorf("Expected context-depth 1, got %d", config.ContextDepth)
	}
	if config.KillPolicy != KillPropagate || config.KillMerge != KillEscalate {
		t.Errorf("Expected default kill options, got %q, %q", config.KillPolicy, config.KillMerge)
	}
	if config.LogLevel != int(InfoLevel) {
		t.Errorf("Expected default log level")
	}
	if !config.MatchPkgFilter("anything") {
		t.Errorf("Empty package filter should match anything")
	}
}

func TestLoadFullConfig(t *testing.T) {
	fileName, config, err := loadFromTestDir("full-config.yaml")
	if err != nil {
		t.Fatalf("Could not load %q: %v", fileName, err)
	}
	defer os.Remove(config.ReportsDir)
	if config.KillPolicy != KillReset {
		t.Errorf("Expected kill-policy reset")
	}
	if config.KillMerge != KillJoin {
		t.Errorf("Expected kill-merge join")
	}
	if config.ContextDepth != 2 {
		t.Errorf("Expected context-depth 2")
	}
	if config.Workers() != 8 {
		t.Errorf("Expected parallelism 8")
	}
	if config.EarlyExit {
		t.Errorf("Expected early-exit to be false")
	}
	if !config.CheckInvariants {
		t.Errorf("Expected check-invariants to be true")
	}
	if config.Timeout() != 45*time.Second {
		t.Errorf("Expected timeout of 45s, got %v", config.Timeout())
	}
	if !config.ExceedsMaxPathEdges(100001) || config.ExceedsMaxPathEdges(100000) {
		t.Errorf("Expected max-path-edges bound of 100000")
	}
	if !config.MatchPkgFilter("example.com/app/server") || config.MatchPkgFilter("fmt") {
		t.Errorf("Package filter does not match as expected")
	}
	if !config.Verbose() {
		t.Errorf("Log level 4 should be verbose")
	}
	if config.RelPath("x.yaml") != filepath.Join("testdata", "x.yaml") {
		t.Errorf("RelPath should be relative to the config file, got %q", config.RelPath("x.yaml"))
	}
}

func TestLogGroupLevels(t *testing.T) {
	c := NewDefault()
	c.LogLevel = int(WarnLevel)
	l := NewLogGroup(c)
	var buf bytes.Buffer
	l.SetAllOutput(&buf)
	l.Infof("hidden %d", 1)
	l.Debugf("hidden %d", 2)
	if buf.Len() != 0 {
		t.Errorf("Info and debug messages should not be logged at warn level, got %q", buf.String())
	}
	l.Warnf("visible %d", 3)
	if !strings.Contains(buf.String(), "visible 3") {
		t.Errorf("Warning should be logged, got %q", buf.String())
	}
	if l.LogsDebug() || l.LogsTrace() {
		t.Errorf("Warn level group should not log debug or trace")
	}
}

func TestSetPkgFilter(t *testing.T) {
	c := NewDefault()
	c.SetPkgFilter("^example\\.com/(app|lib)")
	if !c.MatchPkgFilter("example.com/lib/x") || c.MatchPkgFilter("other.com/example.com/app") {
		t.Errorf("regex package filter does not match as expected")
	}
	c.SetPkgFilter("example.com/[")
	if !c.MatchPkgFilter("example.com/[x") || c.MatchPkgFilter("example.com/app") {
		t.Errorf("invalid regexes must be matched as prefixes")
	}
	c.SetPkgFilter("")
	if !c.MatchPkgFilter("anything") {
		t.Errorf("an empty filter must match everything")
	}
}
