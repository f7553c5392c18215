package datasource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type decimalLike struct{ s string }

func (d decimalLike) String() string { return d.s }

func TestNormalizeValue(t *testing.T) {
	ts := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input any
		want  any
	}{
		{"nil", nil, nil},
		{"bytes", []byte("手机"), "手机"},
		{"invalid utf8 bytes", []byte{0x61, 0xff, 0x62}, "a�b"},
		{"time", ts, "2024-03-05T14:30:00Z"},
		{"int64", int64(42), int64(42)},
		{"float", 1.5, 1.5},
		{"bool", true, true},
		{"string", "x", "x"},
		{"decimal stringer", decimalLike{"12.50"}, "12.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeValue(tt.input))
		})
	}
}

func TestNormalizeRow(t *testing.T) {
	row := NormalizeRow(map[string]any{"name": []byte("abc"), "n": 1})
	assert.Equal(t, "abc", row["name"])
	assert.Equal(t, 1, row["n"])
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 3, ClampLimit(0, 3, 1, 100))
	assert.Equal(t, 1, ClampLimit(-5, 0, 1, 100))
	assert.Equal(t, 100, ClampLimit(500, 3, 1, 100))
	assert.Equal(t, 42, ClampLimit(42, 3, 1, 100))
}

func TestPrimaryKeyColumns(t *testing.T) {
	cols := []ColumnInfo{{Name: "id", IsPrimaryKey: true}, {Name: "name"}, {Name: "tenant", IsPrimaryKey: true}}
	assert.Equal(t, []string{"id", "tenant"}, PrimaryKeyColumns(cols))
	assert.Nil(t, PrimaryKeyColumns([]ColumnInfo{{Name: "x"}}))
}
