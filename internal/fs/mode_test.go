package fs

import (
	"errors"
	"testing"

	"github.com/ajaxzhan/simos/pkg/types"
)

func TestOctalToPermissions(t *testing.T) {
	tests := []struct {
		octal    string
		kind     types.NodeKind
		expected string
	}{
		{"755", types.KindDirectory, "drwxr-xr-x"},
		{"644", types.KindFile, "-rw-r--r--"},
		{"700", types.KindDirectory, "drwx------"},
		{"000", types.KindFile, "----------"},
		{"1777", types.KindDirectory, "drwxrwxrwt"},
		{"1776", types.KindDirectory, "drwxrwxrwT"},
		{"abc", types.KindFile, types.DefaultFilePermissions},
		{"89", types.KindDirectory, types.DefaultDirPermissions},
		{"", types.KindFile, types.DefaultFilePermissions},
	}

	for _, tt := range tests {
		t.Run(tt.octal, func(t *testing.T) {
			if got := OctalToPermissions(tt.octal, tt.kind); got != tt.expected {
				t.Errorf("OctalToPermissions(%q) = %q, want %q", tt.octal, got, tt.expected)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		current  string
		kind     types.NodeKind
		expected string
	}{
		{"octal", "750", "drwxr-xr-x", types.KindDirectory, "drwxr-x---"},
		{"full string", "-rw-------", "-rw-r--r--", types.KindFile, "-rw-------"},
		{"full string kind fixed", "drw-------", "-rw-r--r--", types.KindFile, "-rw-------"},
		{"u+w no-op", "u+w", "drwxr-xr-x", types.KindDirectory, "drwxr-xr-x"},
		{"o-rx", "o-rx", "drwxr-xr-x", types.KindDirectory, "drwxr-x---"},
		{"go-rx", "go-rx", "drwxr-xr-x", types.KindDirectory, "drwx------"},
		{"a=r", "a=r", "-rwxr-xr-x", types.KindFile, "-r--r--r--"},
		{"implicit all", "+x", "-rw-r--r--", types.KindFile, "-rwxr-xr-x"},
		{"equals clears", "u=rw", "-rwxr-xr-x", types.KindFile, "-rw-r-xr-x"},
		{"multiple clauses", "u+x,g-r", "-rw-r--r--", types.KindFile, "-rwx---r--"},
		{"sticky add", "o+t", "drwxrwxrwx", types.KindDirectory, "drwxrwxrwt"},
		{"sticky without x", "+t", "drwxrwxrw-", types.KindDirectory, "drwxrwxrwT"},
		{"remove x keeps sticky", "o-x", "drwxrwxrwt", types.KindDirectory, "drwxrwxrwT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMode(tt.mode, tt.current, tt.kind)
			if err != nil {
				t.Fatalf("ParseMode(%q) error = %v", tt.mode, err)
			}
			if got != tt.expected {
				t.Errorf("ParseMode(%q, %q) = %q, want %q", tt.mode, tt.current, got, tt.expected)
			}
		})
	}
}

func TestParseMode_Invalid(t *testing.T) {
	for _, mode := range []string{"", "u+q", "x+r", "rwx", "999", "u+w,", "-rw-r--r-"} {
		t.Run(mode, func(t *testing.T) {
			_, err := ParseMode(mode, "-rw-r--r--", types.KindFile)
			if !errors.Is(err, types.ErrInvalidMode) {
				t.Errorf("ParseMode(%q) error = %v, want ErrInvalidMode", mode, err)
			}
		})
	}
}
