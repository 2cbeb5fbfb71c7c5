package testutil

import (
	"io"
	"testing"

	"github.com/xuri/excelize/v2"
)

// ReadXlsx reads all rows of a sheet as strings.
func ReadXlsx(t testing.TB, r io.Reader, sheet string) [][]string {
	t.Helper()

	f, err := excelize.OpenReader(r)
	if err != nil {
		t.Fatalf("failed to open xlsx: %s", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("failed to read sheet %s: %s", sheet, err)
	}
	return rows
}
