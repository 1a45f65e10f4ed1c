package validation

import (
	"strings"
	"testing"
)

func TestValidateRepoName(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    string
		wantErr bool
	}{
		{"simple", "owner/repo", "owner/repo", false},
		{"dots and dashes", "my-org/my.repo-2", "my-org/my.repo-2", false},
		{"underscores", "some_org/some_repo", "some_org/some_repo", false},
		{"missing slash", "ownerrepo", "", true},
		{"extra slash", "a/b/c", "", true},
		{"path traversal", "../../etc/passwd", "", true},
		{"shell metachars", "owner/repo;rm -rf /", "", true},
		{"spaces", "owner/re po", "", true},
		{"empty", "", "", true},
		{"not a string", 42, "", true},
		{"too long", strings.Repeat("a", 150) + "/" + strings.Repeat("b", 100), "", true},
		{"exactly max length", strings.Repeat("a", 99) + "/" + strings.Repeat("b", 100), strings.Repeat("a", 99) + "/" + strings.Repeat("b", 100), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateRepoName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateRepoName(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ValidateRepoName(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateIssueNumber(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    int
		wantErr bool
	}{
		{"int", 42, 42, false},
		{"int64", int64(7), 7, false},
		{"json float", float64(123), 123, false},
		{"fractional float", 1.5, 0, true},
		{"numeric string", "99", 99, false},
		{"padded string", " 15 ", 15, false},
		{"bad string", "abc", 0, true},
		{"zero", 0, 0, true},
		{"negative", -3, 0, true},
		{"at ceiling", MaxIssueNumber, MaxIssueNumber, false},
		{"over ceiling", MaxIssueNumber + 1, 0, true},
		{"bool", true, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateIssueNumber(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateIssueNumber(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ValidateIssueNumber(%v) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateSources(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    int
		wantErr bool
	}{
		{"all allowed", []any{"github", "pypi", "npm", "reddit", "hackernews"}, 5, false},
		{"typed slice", []string{"github"}, 1, false},
		{"empty list", []any{}, 0, false},
		{"one bad element", []any{"github", "evil"}, 0, true},
		{"non-string element", []any{"github", 3}, 0, true},
		{"not a list", "github", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateSources(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateSources(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && len(got) != tt.want {
				t.Errorf("ValidateSources(%v) returned %d sources, want %d", tt.input, len(got), tt.want)
			}
		})
	}
}

func TestValidateParams(t *testing.T) {
	t.Run("nil becomes empty map", func(t *testing.T) {
		got, err := ValidateParams(nil, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("got %v, want empty map", got)
		}
	})

	t.Run("over budget", func(t *testing.T) {
		params := map[string]any{"report": strings.Repeat("x", DefaultMaxParamBytes)}
		if _, err := ValidateParams(params, 0); err == nil {
			t.Error("expected error for oversized payload")
		}
	})

	t.Run("under budget", func(t *testing.T) {
		params := map[string]any{"report": "short"}
		got, err := ValidateParams(params, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got["report"] != "short" {
			t.Errorf("params mutated: %v", got)
		}
	})

	t.Run("custom budget", func(t *testing.T) {
		params := map[string]any{"k": strings.Repeat("v", 50)}
		if _, err := ValidateParams(params, 20); err == nil {
			t.Error("expected error with 20-byte budget")
		}
	})
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"semicolons", "hello; rm -rf /"},
		{"backticks", "a`whoami`b"},
		{"dollar", "$(curl evil)"},
		{"pipes", "a | b && c"},
		{"redirects", "a > /etc/passwd < b"},
		{"control chars", "line1\x00\x1bline2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeString(tt.input)
			if strings.ContainsAny(got, ";|&$`()<>") {
				t.Errorf("SanitizeString(%q) = %q, still contains metacharacters", tt.input, got)
			}
		})
	}

	// Clean text survives intact.
	if got := SanitizeString("plain"); got != "plain" {
		t.Errorf("SanitizeString(plain) = %q", got)
	}
}

func TestValidateStringParam(t *testing.T) {
	if _, err := ValidateStringParam("report", 7, 0); err == nil {
		t.Error("expected error for non-string")
	}
	if _, err := ValidateStringParam("report", strings.Repeat("a", 11), 10); err == nil {
		t.Error("expected error over max length")
	}
	got, err := ValidateStringParam("report", "ok", 10)
	if err != nil || got != "ok" {
		t.Errorf("got %q, %v", got, err)
	}
}
