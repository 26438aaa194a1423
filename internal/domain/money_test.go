package domain

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{
			name:  "whole amount",
			input: "20",
			want:  2000,
		},
		{
			name:  "two decimal places",
			input: "20.00",
			want:  2000,
		},
		{
			name:  "single cent",
			input: "0.01",
			want:  1,
		},
		{
			name:  "one decimal place",
			input: "99.5",
			want:  9950,
		},
		{
			name:  "zero",
			input: "0",
			want:  0,
		},
		{
			name:  "negative amount parses, sign checked by caller",
			input: "-20.00",
			want:  -2000,
		},
		{
			name:    "sub-cent precision is rejected",
			input:   "100.001",
			wantErr: true,
		},
		{
			name:    "non-numeric input is rejected",
			input:   "abc",
			wantErr: true,
		},
		{
			name:    "empty input is rejected",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Fatalf("expected ErrInvalidAmount, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %d cents, got %d", tt.want, got)
			}
		})
	}
}

func TestFormatCents(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{cents: 2000, want: "20.00"},
		{cents: -2000, want: "-20.00"},
		{cents: 5, want: "0.05"},
		{cents: 0, want: "0.00"},
		{cents: 123456789, want: "1234567.89"},
	}

	for _, tt := range tests {
		if got := FormatCents(tt.cents); got != tt.want {
			t.Fatalf("FormatCents(%d): expected %q, got %q", tt.cents, tt.want, got)
		}
	}
}
