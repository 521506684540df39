package notify

import (
	"fmt"
	"net/url"
	"strings"
)

// WhatsAppLink builds a wa.me deep link that opens a chat with the pharmacy
// and a prefilled refill request. Returns "" when no usable phone number is
// on file.
func WhatsAppLink(phone, drugName, strength string, pillsRemaining int) string {
	digits := normalizePhone(phone)
	if digits == "" {
		return ""
	}

	drug := drugName
	if strength != "" {
		drug = fmt.Sprintf("%s %s", drugName, strength)
	}
	msg := fmt.Sprintf("Hello, I would like to request a refill for %s. I have %d pill(s) remaining.", drug, pillsRemaining)

	return fmt.Sprintf("https://wa.me/%s?text=%s", digits, url.QueryEscape(msg))
}

// normalizePhone strips everything but digits; wa.me wants an international
// number with no plus sign or punctuation.
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() < 7 {
		return ""
	}
	return b.String()
}
