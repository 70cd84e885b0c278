package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total    int            `json:"total"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Results  []*Result      `json:"results"`
	Failures []SuiteFailure `json:"failures,omitempty"`
}

// SuiteFailure is one scenario that failed to load, execute or pass.
type SuiteFailure struct {
	Scenario string `json:"scenario,omitempty"`
	Path     string `json:"path"`
	Error    string `json:"error"`
}

// Discover returns the YAML scenario files under dir, sorted. A non-empty
// filter is a glob matched against the file name without its extension.
func Discover(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			if ok, _ := filepath.Match(filter, name); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// RunSuite loads and runs every scenario file in paths, in order.
func RunSuite(ctx context.Context, paths []string, opts ...Option) *SuiteResult {
	suite := &SuiteResult{Results: []*Result{}}
	for _, path := range paths {
		suite.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			suite.fail(SuiteFailure{Path: path, Error: fmt.Sprintf("failed to load scenario: %v", err)})
			continue
		}
		result, err := Run(ctx, scenario, opts...)
		if err != nil {
			suite.fail(SuiteFailure{Scenario: scenario.Name, Path: path, Error: fmt.Sprintf("scenario execution failed: %v", err)})
			continue
		}
		result.Path = path
		suite.Results = append(suite.Results, result)
		if !result.Pass {
			suite.fail(SuiteFailure{
				Scenario: scenario.Name,
				Path:     path,
				Error:    fmt.Sprintf("scenario assertions failed: %s", strings.Join(result.Errors, "; ")),
			})
			continue
		}
		suite.Passed++
	}
	return suite
}

func (s *SuiteResult) fail(f SuiteFailure) {
	s.Failed++
	s.Failures = append(s.Failures, f)
}
