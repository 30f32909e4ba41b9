package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/gridcheck/internal/core"
)

var testColumns = []core.Column{
	{Name: "Name"},
	{Name: "Email"},
	{Name: "Age", DataType: core.KindNumber},
	{Name: "Start", DataType: core.KindDate},
	{Name: "End", DataType: core.KindDate},
	{Name: "Min", DataType: core.KindNumber},
	{Name: "Max", DataType: core.KindNumber},
}

func row(values map[string]core.Value) *core.Row {
	return core.NewRow(0, testColumns, values)
}

func check(t *testing.T, r core.Rule, v core.Value, rw *core.Row) bool {
	t.Helper()
	require.NotNil(t, r.Predicate, "rule %s has no synchronous predicate", r.ID)
	if rw == nil {
		rw = row(map[string]core.Value{r.Column: v})
	}
	return r.Predicate(v, rw)
}

func TestRequired(t *testing.T) {
	r := Required("Email")
	assert.Equal(t, "Email_Required", r.ID)
	assert.Equal(t, "Email je povinné pole", r.Message)

	tests := []struct {
		name  string
		value core.Value
		want  bool
	}{
		{"null", core.Null(), false},
		{"empty text", core.Text(""), false},
		{"whitespace", core.Text("   "), false},
		{"text", core.Text("a@b.sk"), true},
		{"zero", core.Number(0), true},
		{"false", core.Bool(false), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, check(t, r, tt.value, nil))
		})
	}
}

func TestBlankPassesOptionalRules(t *testing.T) {
	for _, r := range []core.Rule{
		Length("Name", 2, 5),
		Range("Age", 0, 120),
		Email("Email"),
		Numeric("Age"),
		Date("Start"),
		Regex("Name", `^[A-Z]`),
		OneOf("Name", []string{"a"}),
	} {
		t.Run(r.ID, func(t *testing.T) {
			assert.True(t, check(t, r, core.Null(), nil))
			assert.True(t, check(t, r, core.Text("  "), nil))
		})
	}
}

func TestLength(t *testing.T) {
	r := Length("Name", 2, 5)
	assert.Equal(t, "Name musí mať dĺžku medzi 2 a 5 znakmi", r.Message)

	assert.False(t, check(t, r, core.Text("a"), nil))
	assert.True(t, check(t, r, core.Text("ab"), nil))
	assert.True(t, check(t, r, core.Text("ľščťž"), nil), "counts runes, not bytes")
	assert.False(t, check(t, r, core.Text("abcdef"), nil))

	unbounded := Length("Name", 1, 0)
	assert.True(t, check(t, unbounded, core.Text("a very long name indeed"), nil))
}

func TestRange(t *testing.T) {
	r := Range("Age", 18, 65)
	assert.Equal(t, "Age musí byť medzi 18 a 65", r.Message)

	assert.True(t, check(t, r, core.Number(18), nil))
	assert.True(t, check(t, r, core.Text("42"), nil))
	assert.False(t, check(t, r, core.Number(17.5), nil))
	assert.False(t, check(t, r, core.Number(66), nil))
	assert.False(t, check(t, r, core.Text("abc"), nil))
}

func TestEmail(t *testing.T) {
	r := Email("Email")
	assert.Equal(t, "Email musí mať platný formát emailu", r.Message)

	tests := []struct {
		value string
		want  bool
	}{
		{"jan.novak@firma.sk", true},
		{" jan@firma.sk ", true},
		{"jan@firma", false},
		{"jan firma.sk", false},
		{"@firma.sk", false},
		{"jan@@firma.sk", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, check(t, r, core.Text(tt.value), nil))
		})
	}
}

func TestNumericAndDate(t *testing.T) {
	n := Numeric("Age")
	assert.True(t, check(t, n, core.Text("1 234,5"), nil))
	assert.True(t, check(t, n, core.Number(3), nil))
	assert.False(t, check(t, n, core.Text("tri"), nil))

	d := Date("Start")
	assert.True(t, check(t, d, core.Text("2024-03-01"), nil))
	assert.True(t, check(t, d, core.Date(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)), nil))
	assert.False(t, check(t, d, core.Text("zajtra"), nil))
}

func TestRegexAndOneOf(t *testing.T) {
	r := Regex("Name", `^[A-Z][a-z]+$`)
	assert.True(t, check(t, r, core.Text("Jana"), nil))
	assert.False(t, check(t, r, core.Text("jana"), nil))
	assert.Panics(t, func() { Regex("Name", `(`) })

	o := OneOf("Name", []string{"Áno", "Nie"})
	assert.True(t, check(t, o, core.Text("áno"), nil))
	assert.False(t, check(t, o, core.Text("možno"), nil))
}

func TestOptions(t *testing.T) {
	r := Required("Name",
		WithMessage("vyplň meno"),
		WithID("name-required"),
		WithPriority(10),
		When(func(*core.Row) bool { return false }),
	)
	assert.Equal(t, "vyplň meno", r.Message)
	assert.Equal(t, "name-required", r.ID)
	assert.Equal(t, 10, r.Priority)
	require.NotNil(t, r.Condition)
	assert.False(t, r.Condition(nil))
}

func TestCustomConditionalAsync(t *testing.T) {
	pred := func(v core.Value, _ *core.Row) bool { return v.String() == "ok" }

	c := Custom("Name", pred, "nie je ok")
	assert.Empty(t, c.ID, "custom rules get their ID on registration")
	assert.True(t, check(t, c, core.Text("ok"), nil))

	cond := Conditional("Name", pred, func(*core.Row) bool { return true }, "nie je ok")
	require.NotNil(t, cond.Condition)

	a := Async("Email", nil, "overenie zlyhalo", WithTimeout(time.Second))
	assert.Regexp(t, `^Email_Async_[0-9a-f]{8}$`, a.ID)
	assert.Equal(t, time.Second, a.Timeout)
}

func TestRegisteredBuildersReplaceEachOther(t *testing.T) {
	reg := core.NewRegistry()
	_, err := reg.Add(Required("Email"))
	require.NoError(t, err)
	_, err = reg.Add(Required("Email", WithMessage("iný text")))
	require.NoError(t, err)

	got := reg.Get("Email")
	require.Len(t, got, 1)
	assert.Equal(t, "iný text", got[0].Message)
}
