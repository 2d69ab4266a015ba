package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const miniSchema = `
module: "default"

type: Person: {
	properties: name: { target: "std::str", required: true }
}
`

func TestRun_Basic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/basic.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Cases, 5)
	assert.Equal(t, 0, result.Failures)

	first := result.Cases[0]
	assert.Equal(t, "Person.name", first.Expr)
	assert.Equal(t, "default::Person.name", first.Path)
	assert.Equal(t, "std::str", first.Type)
	require.Len(t, first.Steps, 2)
	assert.Equal(t, "default::Person (root)", first.Steps[0])
	assert.Equal(t, ".name -> std::str", first.Steps[1])

	last := result.Cases[4]
	assert.Contains(t, last.Err, "UNKNOWN_POINTER")
	assert.Empty(t, last.Mismatch)
}

func TestRun_Golden(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/basic.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Failures)
}

func TestRun_PathMismatch(t *testing.T) {
	s := &Scenario{
		Name:   "mismatch",
		Schema: miniSchema,
		Paths: []PathCase{
			{Expr: "Person.name", WantPath: "default::Person.email"},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failures)
	assert.Contains(t, result.Cases[0].Mismatch, `want "default::Person.email"`)
}

func TestRun_TypeMismatch(t *testing.T) {
	s := &Scenario{
		Name:   "mismatch",
		Schema: miniSchema,
		Paths: []PathCase{
			{Expr: "Person.name", WantType: "std::int64"},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failures)
	assert.Contains(t, result.Cases[0].Mismatch, `want "std::int64"`)
}

func TestRun_UnexpectedError(t *testing.T) {
	s := &Scenario{
		Name:   "mismatch",
		Schema: miniSchema,
		Paths: []PathCase{
			{Expr: "Person.nope", WantType: "std::str"},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failures)
	assert.Contains(t, result.Cases[0].Mismatch, "unexpected error")
}

func TestRun_ExpectedErrorButCompiled(t *testing.T) {
	s := &Scenario{
		Name:   "mismatch",
		Schema: miniSchema,
		Paths: []PathCase{
			{Expr: "Person.name", WantError: "UNKNOWN_POINTER"},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failures)
	assert.Contains(t, result.Cases[0].Mismatch, "expected error")
}

func TestRun_ErrorSubstringMismatch(t *testing.T) {
	s := &Scenario{
		Name:   "mismatch",
		Schema: miniSchema,
		Paths: []PathCase{
			{Expr: "Person.nope", WantError: "TYPE_MISMATCH"},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failures)
	assert.Contains(t, result.Cases[0].Mismatch, `does not contain "TYPE_MISMATCH"`)
}

func TestRun_BadSchema(t *testing.T) {
	s := &Scenario{
		Name:   "broken",
		Schema: `module: "default"` + "\n" + `type: Person: { links: pet: { target: "Animal" } }` + "\n",
		Paths:  []PathCase{{Expr: "Person.pet"}},
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "building schema")
}

func TestRenderTrace(t *testing.T) {
	result := &Result{
		Scenario: &Scenario{Name: "render"},
		Cases: []CaseResult{
			{
				Expr:  "Person.name",
				Path:  "default::Person.name",
				Type:  "std::str",
				Steps: []string{"default::Person (root)", ".name -> std::str"},
			},
			{
				Expr: "Person.nope",
				Err:  "UNKNOWN_POINTER: boom",
			},
		},
	}

	want := "scenario: render\n" +
		"case: Person.name\n" +
		"  path: default::Person.name\n" +
		"  type: std::str\n" +
		"  steps:\n" +
		"    default::Person (root)\n" +
		"    .name -> std::str\n" +
		"case: Person.nope\n" +
		"  error: UNKNOWN_POINTER: boom\n"
	assert.Equal(t, want, RenderTrace(result))
}
