package pipeline

import (
	"golang.org/x/text/unicode/norm"
)

// NormalizeLabel canonicalizes a label to Unicode NFC form.
//
// Labels are user-assigned names marking pipeline positions for later
// cross-reference, so two labels that render identically must compare
// equal. NFC normalization happens once, at attachment time; every lookup
// afterwards is a plain string comparison.
//
// An empty label is a construction error.
func NormalizeLabel(label string) (string, error) {
	if label == "" {
		return "", &ConstructionError{Site: "label", Reason: "label must be non-empty"}
	}
	return norm.NFC.String(label), nil
}
