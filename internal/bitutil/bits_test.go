package bitutil

import "testing"

func TestExtractBits(t *testing.T) {
	cases := []struct {
		name            string
		b               byte
		startBit, width int
		want            uint8
	}{
		{"high nibble", 0b0101_0011, 0, 4, 0b0101},
		{"low nibble", 0b0101_0011, 4, 4, 0b0011},
		{"single bit", 0b1000_0000, 0, 1, 1},
		{"full byte", 0xAB, 0, 8, 0xAB},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ExtractBits(c.b, c.startBit, c.width); got != c.want {
				t.Errorf("ExtractBits(%08b, %d, %d) = %d, want %d", c.b, c.startBit, c.width, got, c.want)
			}
		})
	}
}

func TestPackNibbles(t *testing.T) {
	if got := PackNibbles(0x4, 0x3); got != 0x43 {
		t.Errorf("PackNibbles(4,3) = %#x, want 0x43", got)
	}
	if got := HighNibble(0x43); got != 0x4 {
		t.Errorf("HighNibble(0x43) = %#x, want 0x4", got)
	}
	if got := LowNibble(0x43); got != 0x3 {
		t.Errorf("LowNibble(0x43) = %#x, want 0x3", got)
	}
}

func TestUint16RoundTrip(t *testing.T) {
	buf := make([]byte, 2)
	PutUint16(buf, 0xBEEF)
	if got := Uint16(buf); got != 0xBEEF {
		t.Errorf("Uint16 round-trip = %#x, want 0xBEEF", got)
	}
	if buf[0] != 0xBE || buf[1] != 0xEF {
		t.Errorf("PutUint16 not big-endian: %x", buf)
	}
}
