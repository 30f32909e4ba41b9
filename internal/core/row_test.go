package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRow_ErrorAggregation(t *testing.T) {
	var events []Event
	r := NewRow(2, personColumns, map[string]Value{"Name": Text("Jana")})
	r.notify = func(e Event) { events = append(events, e) }

	name, _ := r.Cell("Name")
	email, _ := r.Cell("Email")

	r.addError(email, "Email je povinné pole")
	r.addError(name, "meno je krátke")
	r.addError(email, "Email musí mať platný formát emailu")

	assert.True(t, r.HasErrors())
	assert.Equal(t, 3, r.ErrorCount())
	assert.Equal(t,
		"Name: meno je krátke; Email: Email je povinné pole; Email musí mať platný formát emailu",
		r.ErrorSummary(),
		"cells are listed in column order",
	)
	require.Len(t, events, 3)
	assert.Equal(t, EventCellErrorsChanged, events[2].Kind)
	assert.Equal(t, 2, events[2].Row)
	assert.Equal(t, "Email", events[2].Column)

	r.clearAllErrors()
	assert.False(t, r.HasErrors())
	assert.Empty(t, r.ErrorSummary())
	assert.Len(t, events, 5)
}

func TestRow_CommitErrorsRejectsStaleVersion(t *testing.T) {
	r := NewRow(0, personColumns, map[string]Value{"Email": Text("a")})
	email, _ := r.Cell("Email")

	_, version := email.snapshot()
	require.True(t, r.setValue(email, Text("b")))

	assert.False(t, r.commitErrors(email, version, []string{"late"}))
	assert.Empty(t, email.Errors())

	_, version = email.snapshot()
	assert.True(t, r.commitErrors(email, version, []string{"current"}))
	assert.Equal(t, []string{"current"}, email.Errors())
}

func TestRow_SetSameValueIsNoop(t *testing.T) {
	r := NewRow(0, personColumns, map[string]Value{"Name": Text("Jana")})
	name, _ := r.Cell("Name")

	_, before := name.snapshot()
	assert.False(t, r.setValue(name, Text("Jana")))
	_, after := name.snapshot()
	assert.Equal(t, before, after)
}

func TestRow_SpecialColumnsIgnoredForEmptiness(t *testing.T) {
	r := NewRow(0, personColumns, map[string]Value{ColumnErrorSummary: Text("x")})
	assert.True(t, r.IsEmpty())

	summary, ok := r.Cell(ColumnErrorSummary)
	require.True(t, ok)
	assert.True(t, summary.ReadOnly())
	assert.True(t, summary.Value().IsNull())
}

func TestRow_ExportAndClone(t *testing.T) {
	r := NewRow(0, personColumns, map[string]Value{"Name": Text("Jana"), "Age": Number(30)})
	email, _ := r.Cell("Email")
	r.addError(email, "Email je povinné pole")

	assert.Equal(t, map[string]Value{"Name": Text("Jana"), "Email": Null(), "Age": Number(30)}, r.Export(false))
	assert.Equal(t, Text("Email: Email je povinné pole"), r.Export(true)[ColumnErrorSummary])

	clone := r.cloneAt(7, normalizeColumns(personColumns))
	assert.Equal(t, 7, clone.Index())
	assert.Equal(t, r.Export(true), clone.Export(true))
	c, _ := clone.Cell("Email")
	assert.Equal(t, 7, c.RowIndex())
	assert.True(t, clone.HasErrors())
}

func TestRow_ClearValues(t *testing.T) {
	r := NewRow(0, personColumns, map[string]Value{"Name": Text("Jana")})
	name, _ := r.Cell("Name")
	r.addError(name, "chyba")

	r.clearValues()
	assert.True(t, r.IsEmpty())
	assert.False(t, r.HasErrors())
	assert.True(t, r.Value(ColumnErrorSummary).IsNull())
}
