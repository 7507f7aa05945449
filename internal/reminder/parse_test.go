package reminder

import (
	"errors"
	"testing"
)

func TestParseHHMMValid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw    string
		hour   int
		minute int
	}{
		{raw: "21:00", hour: 21, minute: 0},
		{raw: "0:00", hour: 0, minute: 0},
		{raw: "00:00", hour: 0, minute: 0},
		{raw: "7:05", hour: 7, minute: 5},
		{raw: "07:05", hour: 7, minute: 5},
		{raw: "19:59", hour: 19, minute: 59},
		{raw: "23:59", hour: 23, minute: 59},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			h, m, err := ParseHHMM(tt.raw)
			if err != nil {
				t.Fatalf("ParseHHMM(%q) error: %v", tt.raw, err)
			}
			if h != tt.hour || m != tt.minute {
				t.Fatalf("ParseHHMM(%q) = %d:%d, want %d:%d", tt.raw, h, m, tt.hour, tt.minute)
			}
		})
	}
}

func TestParseHHMMInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{
		"", "24:00", "25:61", "12:60", "07:5", "7", ":30", "12:", "ab:cd", "12:00 ", " 12:00", "12.00", "-1:00",
	} {
		if _, _, err := ParseHHMM(raw); !errors.Is(err, ErrBadTimeFormat) {
			t.Fatalf("ParseHHMM(%q) = %v, want ErrBadTimeFormat", raw, err)
		}
	}
}
