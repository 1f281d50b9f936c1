package behavior

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/spyglass/pkg/wrapper"
)

func loadFixture(t *testing.T) *Definition {
	t.Helper()
	def, err := LoadFile("testdata/database.yaml")
	require.NoError(t, err)
	return def
}

func TestLoadFile(t *testing.T) {
	def := loadFixture(t)
	require.Len(t, def.Interfaces, 1)
	assert.Equal(t, []string{"db.query", "db.fetch", "db.status"}, def.MemberRefs())
	require.Len(t, def.Behaviors, 4)
	assert.Equal(t, "select-one", def.Behaviors[0].Label())
	assert.Equal(t, "behavior on db.fetch", def.Behaviors[3].Label())
	require.NotNil(t, def.Scenario)
	assert.Len(t, def.Scenario.Steps, 5)

	_, err := LoadFile("testdata/missing.yaml")
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{"empty", ``, "empty document"},
		{"no interfaces", `interfaces: []`, "no interfaces"},
		{"unknown key", `
interfaces:
  - name: a
    colour: red
`, "colour"},
		{"duplicate member", `
interfaces:
  - name: a
    members:
      - {name: x, kind: function}
      - {name: x, kind: property}
`, `duplicate member "a.x"`},
		{"unknown kind", `
interfaces:
  - name: a
    members:
      - {name: x, kind: method}
`, `unknown kind "method"`},
		{"unknown member", `
interfaces:
  - name: a
    members:
      - {name: x, kind: function}
behaviors:
  - member: a.y
    return: 1
`, `unknown member "a.y"`},
		{"kind mismatch", `
interfaces:
  - name: a
    members:
      - {name: x, kind: function}
behaviors:
  - member: a.x
    setVal: 1
`, "setVal outcome on a function member"},
		{"two conditions", `
interfaces:
  - name: a
    members:
      - {name: x, kind: function}
behaviors:
  - member: a.x
    when: {always: true, callNumber: 2}
    return: 1
`, "more than one condition"},
		{"no outcome", `
interfaces:
  - name: a
    members:
      - {name: x, kind: property}
behaviors:
  - member: a.x
`, "no outcome"},
		{"call on property", `
interfaces:
  - name: a
    members:
      - {name: x, kind: property}
scenario:
  steps:
    - call: a.x
`, "a.x is not a function"},
		{"operation check without number", `
interfaces:
  - name: a
    members:
      - {name: x, kind: function}
scenario:
  steps: []
  expect:
    - member: a.x
      count: 1
      return: 2
`, "need a number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			require.ErrorIs(t, err, ErrInvalidDefinition)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestStub(t *testing.T) {
	def := loadFixture(t)
	stub, err := def.Stub(wrapper.NewConfig())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, stub.Restore()) })

	db, err := stub.Object("db")
	require.NoError(t, err)

	ret, err := db.Call("query", "select 1")
	require.NoError(t, err)
	assert.Equal(t, 1, ret)

	_, err = db.Call("query", "select 1")
	var thrown *ThrownError
	require.ErrorAs(t, err, &thrown)
	assert.Equal(t, "connection lost", thrown.Message)

	ret, err = db.Call("query", "anything")
	require.NoError(t, err)
	assert.Nil(t, ret)

	ret, err = db.Call("fetch")
	require.NoError(t, err)
	p, ok := ret.(*wrapper.Promise)
	require.True(t, ok)
	v, err := p.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"rows": 2}, v)

	v, err = db.Get("status")
	require.NoError(t, err)
	assert.Equal(t, "idle", v)

	w, err := stub.Wrapper("db.query")
	require.NoError(t, err)
	assert.False(t, w.Config().CallUnderlying)
	assert.Equal(t, 3, w.History().Len())

	status, err := stub.Wrapper("db.status")
	require.NoError(t, err)
	assert.True(t, status.Config().CallUnderlying)

	_, err = stub.Wrapper("db.nope")
	assert.ErrorIs(t, err, wrapper.ErrNoMember)
	_, err = stub.Object("nope")
	assert.ErrorIs(t, err, wrapper.ErrNoMember)
}

func TestScenarioPasses(t *testing.T) {
	def := loadFixture(t)
	report, err := def.Run(wrapper.NewConfig())
	require.NoError(t, err)
	assert.True(t, report.Passed(), "failures: %v", report.Failures)
	assert.NoError(t, report.Err())

	require.Len(t, report.Steps, 5)
	assert.Equal(t, `call db.query("select 1")`, report.Steps[0].Step)
	assert.Equal(t, "1", report.Steps[0].Return)
	assert.Equal(t, "connection lost", report.Steps[1].Error)
	assert.Equal(t, `set db.status = "busy"`, report.Steps[2].Step)
	assert.Equal(t, `"locked"`, report.Steps[3].Return)

	require.Len(t, report.Members, 3)
	assert.Equal(t, "db.query", report.Members[0].Member)
	assert.Equal(t, "function", report.Members[0].Kind)
	assert.Len(t, report.Members[0].Operations, 2)
	assert.Contains(t, report.Members[0].Operations[1], `throws "connection lost"`)
	assert.Equal(t, "property", report.Members[2].Kind)
}

func TestScenarioFailures(t *testing.T) {
	doc := `
interfaces:
  - name: clock
    members:
      - {name: now, kind: function}
behaviors:
  - member: clock.now
    return: 42
scenario:
  steps:
    - call: clock.now
  expect:
    - member: clock.now
      count: 2
    - member: clock.now
      number: 0
      return: 41
    - member: clock.now
      number: 3
`
	def, err := Load(strings.NewReader(doc))
	require.NoError(t, err)

	report, err := def.Run(wrapper.NewConfig())
	require.NoError(t, err)
	assert.False(t, report.Passed())
	require.Len(t, report.Failures, 3)
	assert.Contains(t, report.Failures[0], "clock.now: operation 3")
	assert.Contains(t, report.Failures[1], "ExpectCount: expected exactly 2 operations; got 1")
	assert.Contains(t, report.Failures[2], "Expected: '41'; Got: '42'")

	var ee *wrapper.ExpectError
	require.ErrorAs(t, report.Err(), &ee)
	assert.Len(t, ee.Failures, 3)
}

func TestScenarioIgnoresExpectThrows(t *testing.T) {
	def := loadFixture(t)
	def.Scenario.Expect = append(def.Scenario.Expect, Expect{Member: "db.fetch", Count: new(int)})

	cfg := wrapper.NewConfig()
	cfg.ExpectThrows = true
	report, err := def.Run(cfg)
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0], "db.fetch")
}

func TestRunWithoutScenario(t *testing.T) {
	def, err := Load(strings.NewReader(`
interfaces:
  - name: a
    members:
      - {name: x, kind: function}
`))
	require.NoError(t, err)
	_, err = def.Run(wrapper.NewConfig())
	assert.ErrorIs(t, err, ErrNoScenario)
}
