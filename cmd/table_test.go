package main

import (
	"strings"
	"testing"
)

func TestRenderTableKeepsHeaderCase(t *testing.T) {
	out := renderTable([]string{"Amplifier", "Delivered mW"}, [][]string{{"Magni", "1200"}}, []columnAlignment{alignLeft, alignRight})
	requireContains(t, out, "Amplifier")
	requireContains(t, out, "Delivered mW")
	if strings.Contains(out, "AMPLIFIER") {
		t.Fatalf("expected headers to keep their case, got:\n%s", out)
	}
}

func TestRenderTableEmpty(t *testing.T) {
	if out := renderTable(nil, nil, nil); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}
