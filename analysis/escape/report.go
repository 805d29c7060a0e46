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

package escape

import (
	"fmt"
	"os"

	"github.com/awslabs/ar-thresc/analysis/config"
	"github.com/awslabs/ar-thresc/analysis/program"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ResultSummary is the content of the yaml report of a batch
type ResultSummary struct {
	Escaping []string `yaml:"escaping"`
	Local    []string `yaml:"local"`
	TimedOut []string `yaml:"timed-out"`
	Queries  int      `yaml:"queries"`
	Pops     int      `yaml:"pops"`
}

// Summarize returns the yaml summary of the result
func (r *Result) Summarize() ResultSummary {
	s := ResultSummary{
		Escaping: positions(r.Escaping),
		Local:    positions(r.Local),
		TimedOut: positions(r.TimedOut),
		Queries:  len(r.Queries),
	}
	for _, q := range r.Queries {
		s.Pops += q.Stats.Pops
	}
	return s
}

func positions(instrs []program.Instruction) []string {
	res := make([]string, len(instrs))
	for i, instr := range instrs {
		res[i] = fmt.Sprintf("%s: %s", instr.Pos(), instr)
	}
	return res
}

// WriteReports writes the result of a batch in the reports directory of the config: the escaping and local
// instructions, one per line, and a yaml summary. Timed out instructions are written with the escaping ones.
// It returns the names of the files written, or nothing if the config does not ask for reports.
func WriteReports(cfg *config.Config, logger *config.LogGroup, res *Result) ([]string, error) {
	if !cfg.ReportResults || cfg.ReportsDir == "" {
		return nil, nil
	}
	var files []string
	write := func(pattern string, lines []string) error {
		tmp, err := os.CreateTemp(cfg.ReportsDir, pattern)
		if err != nil {
			return errors.Wrapf(err, "could not create report in %s", cfg.ReportsDir)
		}
		defer tmp.Close()
		for _, line := range lines {
			if _, err := fmt.Fprintln(tmp, line); err != nil {
				return errors.Wrapf(err, "could not write report %s", tmp.Name())
			}
		}
		files = append(files, tmp.Name())
		logger.Infof("Report in %s", tmp.Name())
		return nil
	}

	summary := res.Summarize()
	escaping := append(append([]string{}, summary.Escaping...), summary.TimedOut...)
	if err := write("escaping-*.out", escaping); err != nil {
		return files, err
	}
	if err := write("local-*.out", summary.Local); err != nil {
		return files, err
	}
	b, err := yaml.Marshal(summary)
	if err != nil {
		return files, errors.Wrap(err, "could not marshal result summary")
	}
	tmp, err := os.CreateTemp(cfg.ReportsDir, "thresc-result-*.yaml")
	if err != nil {
		return files, errors.Wrapf(err, "could not create report in %s", cfg.ReportsDir)
	}
	defer tmp.Close()
	if _, err := tmp.Write(b); err != nil {
		return files, errors.Wrapf(err, "could not write report %s", tmp.Name())
	}
	files = append(files, tmp.Name())
	logger.Infof("Result summary in %s", tmp.Name())
	return files, nil
}
