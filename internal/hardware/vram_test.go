package hardware

import "testing"

func TestCorrectVRAM(t *testing.T) {
	cases := []struct {
		name     string
		gpu      string
		reported int64
		want     int64
	}{
		{"trusted above 4GiB", "NVIDIA GeForce RTX 4090", 24 * gib, 24 * gib},
		{"zero untouched", "NVIDIA GeForce RTX 4090", 0, 0},
		{"capped 4090", "NVIDIA GeForce RTX 4090", 4 * gib, 24 * gib},
		{"ti before base", "NVIDIA GeForce RTX 4070 Ti", 4 * gib, 16 * gib},
		{"case insensitive", "nvidia geforce rtx 3080ti", 4 * gib, 12 * gib},
		{"xtx before xt", "AMD Radeon RX 7900 XTX", 4 * gib, 24 * gib},
		{"xt", "AMD Radeon RX 7900 XT", 4 * gib, 20 * gib},
		{"unknown near cap", "NVIDIA RTX A4000", 4293918720, 8 * gib},
		{"unknown small", "NVIDIA GeForce GTX 1650", 4 * gib / 2, 2 * gib},
	}
	for _, tc := range cases {
		if got := CorrectVRAM(tc.gpu, tc.reported); got != tc.want {
			t.Fatalf("%s: got %d want %d", tc.name, got, tc.want)
		}
	}
}
