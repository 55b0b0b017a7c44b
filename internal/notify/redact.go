package notify

import "strings"

// RedactEmail masks an email address for safe logging by replacing all but
// the first character of the local part with asterisks. For example,
// "john@gmail.com" becomes "j***@gmail.com".
//
// If the email does not contain an "@" symbol, the entire string is masked.
func RedactEmail(email string) string {
	if email == "" {
		return ""
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	if local == "" {
		return "***@" + domain
	}
	return local[:1] + "***@" + domain
}
