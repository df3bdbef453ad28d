package logger

import "strings"

// RedactPhone masks a phone number for safe logging, keeping the country
// prefix and the last two digits: "5511987654321" -> "55*********21".
// Numbers too short to mask meaningfully are fully masked.
func RedactPhone(phone string) string {
	if len(phone) < 6 {
		return "****"
	}
	return phone[:2] + strings.Repeat("*", len(phone)-4) + phone[len(phone)-2:]
}
