package ident

import "testing"

func TestParseAddressFormats(t *testing.T) {
	tests := []struct {
		raw    string
		phone  string
		suffix string
	}{
		{"972501234567@c.us", "972501234567", SuffixCUs},
		{"972501234567@s.whatsapp.net", "972501234567", SuffixWhatsApp},
		{"123456789012@lid", "123456789012", SuffixLid},
		{"972501234567", "972501234567", SuffixCUs},
	}
	for _, tt := range tests {
		addr, err := ParseAddress(tt.raw)
		if err != nil {
			t.Fatalf("ParseAddress(%q) unexpected error: %v", tt.raw, err)
		}
		if addr.Phone != tt.phone {
			t.Errorf("ParseAddress(%q) phone = %q, want %q", tt.raw, addr.Phone, tt.phone)
		}
		if addr.Suffix != tt.suffix {
			t.Errorf("ParseAddress(%q) suffix = %q, want %q", tt.raw, addr.Suffix, tt.suffix)
		}
	}
}

func TestParseAddressStable(t *testing.T) {
	first, err := ParseAddress("972501234567@s.whatsapp.net")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ParseAddress("972501234567@s.whatsapp.net")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("ParseAddress not stable: %v vs %v", first, second)
	}
}

func TestParseAddressRejectsGroupsAndBroadcasts(t *testing.T) {
	for _, raw := range []string{"12036304@g.us", "status@broadcast"} {
		if _, err := ParseAddress(raw); err != ErrNotPrivateChat {
			t.Errorf("ParseAddress(%q) error = %v, want ErrNotPrivateChat", raw, err)
		}
	}
}

func TestParseAddressRejectsInvalid(t *testing.T) {
	for _, raw := range []string{"", "abc@c.us", "1234@c.us", "12a34567890@c.us"} {
		if _, err := ParseAddress(raw); err != ErrInvalidAddress {
			t.Errorf("ParseAddress(%q) error = %v, want ErrInvalidAddress", raw, err)
		}
	}
}

func TestChatIDRoundTrip(t *testing.T) {
	addr, err := ParseAddress("972501234567@lid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := addr.ChatID(); got != "972501234567@lid" {
		t.Errorf("ChatID() = %q, want original format back", got)
	}
}

func TestFormatChatID(t *testing.T) {
	if got := FormatChatID("+972-50-123-4567"); got != "972501234567@c.us" {
		t.Errorf("FormatChatID = %q", got)
	}
}

func TestFormatLocal(t *testing.T) {
	if got := FormatLocal("972544994417"); got != "0544994417" {
		t.Errorf("FormatLocal = %q, want 0544994417", got)
	}
	if got := FormatLocal("15551234567"); got != "15551234567" {
		t.Errorf("FormatLocal should pass through non-972 numbers, got %q", got)
	}
}
