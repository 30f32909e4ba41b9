package csvimport

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/JonMunkholm/gridcheck/internal/core"
)

var gridColumns = []string{"Meno", "Email", "Vek"}

func TestRead_Encodings(t *testing.T) {
	utf16le := []byte{0xFF, 0xFE}
	for _, r := range "Meno\nJana\n" {
		utf16le = append(utf16le, byte(r), 0)
	}

	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{
			name:  "file with UTF-8 BOM",
			input: append([]byte{0xEF, 0xBB, 0xBF}, []byte("Meno\nJana\n")...),
			want:  "Jana",
		},
		{
			name:  "file without BOM",
			input: []byte("Meno\nJana\n"),
			want:  "Jana",
		},
		{
			name:  "multibyte UTF-8",
			input: []byte("Meno\nĽubomír Šťastný\n"),
			want:  "Ľubomír Šťastný",
		},
		{
			name:  "invalid byte replaced",
			input: []byte{'M', 'e', 'n', 'o', '\n', 'J', 0x80, 'n', 'a', '\n'},
			want:  "J\uFFFDna",
		},
		{
			name:  "UTF-16LE with BOM",
			input: utf16le,
			want:  "Jana",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Read(bytes.NewReader(tt.input), gridColumns, Options{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(res.Records) != 1 {
				t.Fatalf("got %d records, want 1", len(res.Records))
			}
			if got := res.Records[0]["Meno"].String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRead_DetectsSeparator(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"comma", "Meno,Email\nJana,jana@firma.sk\n"},
		{"semicolon", "Meno;Email\nJana;jana@firma.sk\n"},
		{"tab", "Meno\tEmail\nJana\tjana@firma.sk\n"},
		{"semicolon with commas in values", "Meno;Email\n\"Nováková, Jana\";jana@firma.sk\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Read(strings.NewReader(tt.input), gridColumns, Options{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := res.Records[0]["Email"].String(); got != "jana@firma.sk" {
				t.Errorf("Email = %q, want %q", got, "jana@firma.sk")
			}
		})
	}
}

func TestRead_HeaderDetection(t *testing.T) {
	input := "Export zo systému\n\n" +
		"ID;\"meno\";EMAIL;Poznámka\n" +
		"1;Jana;jana@firma.sk;x\n" +
		";;;\n" +
		"2;Peter;;\n"

	res, err := Read(strings.NewReader(input), gridColumns, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// encoding/csv skips the blank line
	if res.HeaderRow != 1 {
		t.Errorf("HeaderRow = %d, want 1", res.HeaderRow)
	}
	if got := strings.Join(res.Columns, ","); got != "Meno,Email" {
		t.Errorf("Columns = %q, want %q", got, "Meno,Email")
	}
	if got := strings.Join(res.Ignored, ","); got != "ID,Poznámka" {
		t.Errorf("Ignored = %q, want %q", got, "ID,Poznámka")
	}
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", res.Skipped)
	}
	if len(res.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(res.Records))
	}
	if _, ok := res.Records[1]["Email"]; ok {
		t.Error("blank cell should be left out of the record")
	}
	if _, ok := res.Records[0]["ID"]; ok {
		t.Error("unmatched column should be left out of the record")
	}
}

func TestRead_Parse(t *testing.T) {
	input := "Meno,Vek\nJana,31\n"

	res, err := Read(strings.NewReader(input), gridColumns, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k := res.Records[0]["Vek"].Kind(); k != core.KindText {
		t.Errorf("without Parse kind = %v, want text", k)
	}

	res, err = Read(strings.NewReader(input), gridColumns, Options{Parse: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, ok := res.Records[0]["Vek"].AsNumber(); !ok || n != 31 {
		t.Errorf("with Parse Vek = %v, want 31", res.Records[0]["Vek"])
	}
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		opts    Options
		wantErr error
	}{
		{"empty file", "", Options{}, ErrNoHeader},
		{"no matching header", "A,B\n1,2\n", Options{}, ErrNoHeader},
		{"header past search window", strings.Repeat("x\n", MaxHeaderSearchRows) + "Meno\nJana\n", Options{}, ErrNoHeader},
		{"too many rows", "Meno\na\nb\nc\n", Options{MaxRows: 2}, ErrTooManyRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input), gridColumns, tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRead_MapsToUserMessages(t *testing.T) {
	_, err := Read(strings.NewReader("A\n"), gridColumns, Options{})
	if code := core.MapError(err).Code; code != "IMP001" {
		t.Errorf("code = %s, want IMP001", code)
	}

	_, err = Read(strings.NewReader("Meno\na\nb\n"), gridColumns, Options{MaxRows: 1})
	if code := core.MapError(err).Code; code != "IMP002" {
		t.Errorf("code = %s, want IMP002", code)
	}
}
