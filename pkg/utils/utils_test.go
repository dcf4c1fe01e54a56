package utils

import (
	"testing"
)

func TestCoalesceString(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want string
	}{
		{"empty slice", []string{}, ""},
		{"all empty", []string{"", "", ""}, ""},
		{"first non-empty", []string{"a", "", "c"}, "a"},
		{"second non-empty", []string{"", "b", "c"}, "b"},
		{"single", []string{"x"}, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoalesceString(tt.in...)
			if got != tt.want {
				t.Errorf("CoalesceString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultInt(t *testing.T) {
	tests := []struct {
		v, defaultVal, want int
	}{
		{0, 10, 10},
		{1, 10, 1},
		{-1, 10, -1},
		{100, 5, 100},
	}
	for _, tt := range tests {
		got := DefaultInt(tt.v, tt.defaultVal)
		if got != tt.want {
			t.Errorf("DefaultInt(%d, %d) = %d, want %d", tt.v, tt.defaultVal, got, tt.want)
		}
	}
}

func TestDefaultFloat(t *testing.T) {
	if got := DefaultFloat(0, 0.4); got != 0.4 {
		t.Errorf("DefaultFloat(0, 0.4) = %v", got)
	}
	if got := DefaultFloat(0.7, 0.4); got != 0.7 {
		t.Errorf("DefaultFloat(0.7, 0.4) = %v", got)
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("hello", 10); got != "hello" {
		t.Errorf("short string should pass through, got %q", got)
	}
	if got := TruncateString("hello world", 5); got != "hello" {
		t.Errorf("TruncateString: got %q", got)
	}
	if got := TruncateString("你好世界", 2); got != "你好" {
		t.Errorf("TruncateString utf8: got %q", got)
	}
	if got := TruncateString("abc", 0); got != "abc" {
		t.Errorf("max<=0 should pass through, got %q", got)
	}
}
