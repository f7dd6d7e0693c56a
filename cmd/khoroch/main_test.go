package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseSigned(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"0", "0", false},
		{"0,00", "0", false},
		{"1500", "1500", false},
		{"-250,5", "-250.5", false},
		{"12.345", "12.35", false},
		{"abc", "", true},
		{"--1", "", true},
	}
	for _, tt := range tests {
		got, err := parseSigned(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseSigned(%q) error = %v", tt.in, err)
		}
		if !tt.wantErr && !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Fatalf("parseSigned(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestUsageListsEveryCommand(t *testing.T) {
	var buf bytes.Buffer
	usage(&buf)
	for name := range commands {
		if !strings.Contains(buf.String(), name) {
			t.Errorf("usage is missing %q", name)
		}
	}
}
