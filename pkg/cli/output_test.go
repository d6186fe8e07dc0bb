package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

type backendTable [][]string

func (b backendTable) Header() []string { return []string{"id", "state"} }
func (b backendTable) Rows() [][]string { return b }

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name string
		data any
		want string
	}{
		{"plain value", "test message", "test message\n"},
		{
			name: "table",
			data: backendTable{{"primary", "closed"}, {"fallback-long", "open"}},
			want: "ID             STATE\nprimary        closed\nfallback-long  open\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			if err := (&TextFormatter{}).FormatTo(buf, tt.data); err != nil {
				t.Fatalf("FormatTo() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("FormatTo() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestJSONFormatter(t *testing.T) {
	formatter := &JSONFormatter{Indent: true}
	buf := &bytes.Buffer{}

	if err := formatter.FormatTo(buf, map[string]string{"id": "primary"}); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	var result map[string]string
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("FormatTo() produced invalid JSON: %v", err)
	}
	if result["id"] != "primary" {
		t.Errorf("id = %q, want %q", result["id"], "primary")
	}
}

func TestCSVFormatter(t *testing.T) {
	data := backendTable{{"primary", "closed"}, {"with,comma", "open"}}

	out, err := (&CSVFormatter{}).Format(data)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "id,state\nprimary,closed\n\"with,comma\",open\n"
	if string(out) != want {
		t.Errorf("Format() = %q, want %q", out, want)
	}

	out, err = (&CSVFormatter{OmitHeader: true}).Format(data)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if strings.HasPrefix(string(out), "id,") {
		t.Errorf("Format() with OmitHeader = %q, header present", out)
	}

	if _, err := (&CSVFormatter{}).Format("not a table"); err == nil {
		t.Error("Format(non-table) error = nil, want error")
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{FormatText, "*cli.TextFormatter"},
		{FormatJSON, "*cli.JSONFormatter"},
		{FormatCSV, "*cli.CSVFormatter"},
		{"unknown", "*cli.TextFormatter"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			got := fmt.Sprintf("%T", NewFormatter(tt.format))
			if got != tt.want {
				t.Errorf("NewFormatter(%q) type = %v, want %v", tt.format, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"junit", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
