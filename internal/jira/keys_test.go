package jira

import (
	"testing"
)

func TestIsIssueKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"PROJ-123", true},
		{"A-1", true},
		{"MY_TEAM-42", true},
		{"proj-7", true},
		{"PROJ", false},
		{"PROJ-", false},
		{"-123", false},
		{"1PROJ-1", false},
		{"PROJ-1) OR project = X", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsIssueKey(tt.key); got != tt.want {
			t.Errorf("IsIssueKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestIsProjectKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"PROJ", true},
		{"MY_TEAM", true},
		{"P2", true},
		{"PROJ-1", false},
		{"2P", false},
		{"", false},
		{"A&keys=B", false},
	}
	for _, tt := range tests {
		if got := IsProjectKey(tt.key); got != tt.want {
			t.Errorf("IsProjectKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestParseEntityID(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"10000", 10000, false},
		{" 42 ", 42, false},
		{"0", 0, true},
		{"-5", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseEntityID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseEntityID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseEntityID(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
