// Package ident normalizes WhatsApp chat addresses to canonical phone numbers.
//
// The provider reaches the same contact under several suffix conventions
// (@c.us, @s.whatsapp.net, @lid). Replies must go back using the same format
// the contact was last observed at, so parsing keeps the original suffix
// alongside the digits-only phone.
package ident

import (
	"errors"
	"strings"
)

// Known address suffixes.
const (
	SuffixCUs       = "@c.us"
	SuffixWhatsApp  = "@s.whatsapp.net"
	SuffixLid       = "@lid"
	SuffixGroup     = "@g.us"
	SuffixBroadcast = "@broadcast"
)

// MinPhoneDigits is the minimum length of a plausible phone number.
const MinPhoneDigits = 8

var (
	// ErrNotPrivateChat marks group and broadcast addresses.
	ErrNotPrivateChat = errors.New("address is not a private chat")
	// ErrInvalidAddress marks addresses whose user part is not a phone number.
	ErrInvalidAddress = errors.New("address has no valid phone number")
)

// Address is a parsed chat address: canonical phone plus the suffix format
// it was observed under.
type Address struct {
	Phone  string
	Suffix string
}

// ChatID reproduces the original channel address for replies.
func (a Address) ChatID() string {
	return a.Phone + a.Suffix
}

// IsLinkedID reports whether the address used the @lid format, whose user
// part is a device-linked id rather than the real phone number.
func (a Address) IsLinkedID() bool {
	return a.Suffix == SuffixLid
}

// ParseAddress parses a raw channel address. Group and broadcast addresses
// return ErrNotPrivateChat. A bare digit string is accepted and assumed to
// be in the default @c.us format.
func ParseAddress(raw string) (Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Address{}, ErrInvalidAddress
	}
	if strings.HasSuffix(trimmed, SuffixGroup) || strings.HasSuffix(trimmed, SuffixBroadcast) {
		return Address{}, ErrNotPrivateChat
	}

	suffix := SuffixCUs
	user := trimmed
	for _, s := range []string{SuffixCUs, SuffixWhatsApp, SuffixLid} {
		if strings.HasSuffix(trimmed, s) {
			suffix = s
			user = strings.TrimSuffix(trimmed, s)
			break
		}
	}

	if !isDigits(user) || len(user) < MinPhoneDigits {
		return Address{}, ErrInvalidAddress
	}
	return Address{Phone: user, Suffix: suffix}, nil
}

// FormatChatID renders a phone number as a private chat address in the
// default @c.us format, stripping any non-digit characters.
func FormatChatID(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String() + SuffixCUs
}

// FormatLocal renders an international phone for operator display:
// 972544994417 becomes 0544994417. Other prefixes pass through unchanged.
func FormatLocal(phone string) string {
	if strings.HasPrefix(phone, "972") {
		return "0" + phone[3:]
	}
	return phone
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
