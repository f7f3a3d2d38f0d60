package core

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"golang.org/x/text/encoding/japanese"
)

func encode(t *testing.T, s string) []byte {
	t.Helper()
	out, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return out
}

func TestReadText(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		charset  string
		expected string
	}{
		{
			name:     "plain utf-8",
			input:    []byte("請求書 No.1"),
			expected: "請求書 No.1",
		},
		{
			name:     "utf-8 with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("請求書")...),
			expected: "請求書",
		},
		{
			name:     "utf-16le with BOM",
			input:    []byte{0xFF, 0xFE, 0xCB, 0x8A, 0x42, 0x6C, 0xF8, 0x66},
			expected: "請求書",
		},
		{
			name:     "shift_jis",
			input:    nil,
			charset:  "Shift_JIS",
			expected: "株式会社アクメ 請求金額",
		},
		{
			name:     "invalid utf-8 is replaced",
			input:    []byte{'a', 0xFF, 'b'},
			expected: "a\uFFFDb",
		},
		{
			name:     "empty",
			input:    []byte{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tt.input
			if input == nil {
				input = encode(t, tt.expected)
			}
			got, err := ReadText(bytes.NewReader(input), tt.charset, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestReadText_Limit(t *testing.T) {
	if _, err := ReadText(strings.NewReader("0123456789"), "", 10); err != nil {
		t.Fatalf("text at the limit should be accepted: %v", err)
	}
	_, err := ReadText(strings.NewReader("0123456789X"), "", 10)
	if !errors.Is(err, ErrTextTooLarge) {
		t.Fatalf("expected ErrTextTooLarge, got %v", err)
	}
}

func TestReadText_UnsupportedCharset(t *testing.T) {
	if _, err := ReadText(strings.NewReader("x"), "klingon", 0); err == nil {
		t.Fatal("expected error for unsupported charset")
	}
	for _, name := range Charsets {
		if _, err := NewTextReader(strings.NewReader(""), name); err != nil {
			t.Errorf("charset %s: %v", name, err)
		}
	}
}
