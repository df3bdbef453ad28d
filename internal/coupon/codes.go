package coupon

import "strings"

// BirthdayCode derives a coupon code from the customer's first name
// (uppercased, letters/digits only) and a fragment of the customer id.
// "Maria" + "3f2a9c1e-..." → "MARIA-3F2A9C".
func BirthdayCode(firstName, customerID string) string {
	name := sanitize(firstName, 8)
	if name == "" {
		name = "BDAY"
	}
	return truncate(name+"-"+idFragment(customerID, 6), maxCodeLen)
}

// VipCode derives a coupon code from a fragment of the customer id.
func VipCode(customerID string) string {
	return "VIP-" + idFragment(customerID, 8)
}

// sanitize uppercases and strips everything but letters and digits.
func sanitize(s string, max int) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() >= max {
			break
		}
	}
	return b.String()
}

// idFragment takes the first n hex characters of an id, dashes removed.
func idFragment(id string, n int) string {
	clean := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	return truncate(clean, n)
}
