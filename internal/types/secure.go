package types

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString is a string that redacts itself through fmt and JSON, so API
// keys and SMTP passwords never reach logs or the shared state record.
// Settings files and the environment still decode into it as a plain string.
//
// Use Unmask() where the raw value is genuinely needed.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value of the secret.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsZero reports whether the secret is empty.
func (s SecretString) IsZero() bool {
	return s == ""
}
