package main

import (
	"strings"
	"testing"
)

func TestParseClips(t *testing.T) {
	list, err := parseClips("0:2:3, 1:1:3.5", 2)
	if err != nil {
		t.Fatalf("parseClips failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 clips, got %d", len(list))
	}

	if list[0].SourceIndex != 0 || list[0].Start != 2 || list[0].Duration != 3 || list[0].Position != 0 {
		t.Errorf("Unexpected first clip: %+v", list[0])
	}
	if list[1].SourceIndex != 1 || list[1].Start != 1 || list[1].Duration != 3.5 || list[1].Position != 1 {
		t.Errorf("Unexpected second clip: %+v", list[1])
	}
}

func TestParseClipsErrors(t *testing.T) {
	tests := []struct {
		name        string
		spec        string
		sourceCount int
		wantSubstr  string
	}{
		{"empty", "", 1, "no clips"},
		{"missing field", "0:2", 1, "expected source:start:duration"},
		{"bad source", "x:2:3", 1, "bad source"},
		{"source out of range", "3:2:3", 2, "out of range"},
		{"negative start", "0:-1:3", 1, "bad start"},
		{"zero duration", "0:2:0", 1, "bad duration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseClips(tt.spec, tt.sourceCount)
			if err == nil {
				t.Fatalf("Expected error for %q", tt.spec)
			}
			if !strings.Contains(err.Error(), tt.wantSubstr) {
				t.Errorf("Expected %q in error, got %v", tt.wantSubstr, err)
			}
		})
	}
}
