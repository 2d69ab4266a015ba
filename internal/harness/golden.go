package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario and compares its rendered trace
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, []byte(RenderTrace(result)))

	return result, nil
}

// RenderTrace renders a scenario result as the stable text trace golden
// files record.
func RenderTrace(result *Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "scenario: %s\n", result.Scenario.Name)

	for _, cr := range result.Cases {
		fmt.Fprintf(&sb, "case: %s\n", cr.Expr)
		if cr.Err != "" {
			fmt.Fprintf(&sb, "  error: %s\n", cr.Err)
			continue
		}
		fmt.Fprintf(&sb, "  path: %s\n", cr.Path)
		fmt.Fprintf(&sb, "  type: %s\n", cr.Type)
		sb.WriteString("  steps:\n")
		for _, step := range cr.Steps {
			fmt.Fprintf(&sb, "    %s\n", step)
		}
	}
	return sb.String()
}
