package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateColumns(t *testing.T) {
	tests := []struct {
		name    string
		cols    []Column
		wantErr string
	}{
		{name: "valid", cols: []Column{{Name: "A"}, {Name: "B", MinWidth: 10, MaxWidth: 20}}},
		{name: "empty list", cols: nil, wantErr: "at least one column"},
		{name: "blank name", cols: []Column{{Name: " "}}, wantErr: "name is required"},
		{name: "duplicate ignoring case", cols: []Column{{Name: "Email"}, {Name: "email"}}, wantErr: "duplicate name"},
		{name: "negative width", cols: []Column{{Name: "A", Width: -1}}, wantErr: "must be positive"},
		{name: "min over max", cols: []Column{{Name: "A", MinWidth: 400, MaxWidth: 100}}, wantErr: "exceeds max width"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateColumns(tt.cols)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidColumns)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateColumns_ReportsEveryProblem(t *testing.T) {
	err := ValidateColumns([]Column{{Name: ""}, {Name: "A"}, {Name: "a"}, {Name: "B", MinWidth: 500}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "duplicate name")
	assert.Contains(t, err.Error(), "exceeds max width")
}

func TestNormalizeColumns(t *testing.T) {
	cols := normalizeColumns([]Column{
		{Name: ColumnRowAction},
		{Name: "Name"},
		{Name: ColumnErrorSummary, Header: "Chyby"},
		{Name: "Age", Width: 90},
	})

	require.Len(t, cols, 4)
	assert.Equal(t, "Name", cols[0].Name)
	assert.Equal(t, "Age", cols[1].Name)
	assert.Equal(t, ColumnRowAction, cols[2].Name)
	assert.Equal(t, ColumnErrorSummary, cols[3].Name)

	assert.Equal(t, "Name", cols[0].Header)
	assert.Equal(t, DefaultWidth, cols[0].Width)
	assert.Equal(t, 90, cols[1].Width)
	assert.Equal(t, "Chyby", cols[3].Header)
	assert.True(t, cols[2].ReadOnly)
	assert.True(t, cols[3].ReadOnly)
}

func TestNormalizeColumns_AddsSummary(t *testing.T) {
	cols := normalizeColumns([]Column{{Name: "Name"}})
	require.Len(t, cols, 2)
	assert.Equal(t, errorSummaryColumn(), cols[1])
}

func TestIsSpecialColumn(t *testing.T) {
	assert.True(t, IsSpecialColumn(ColumnRowAction))
	assert.True(t, IsSpecialColumn(ColumnErrorSummary))
	assert.False(t, IsSpecialColumn("Email"))
}
