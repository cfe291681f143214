package gcip

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// ParseServiceAccount normalises a service-account credential supplied via
// the environment. Deployment dashboards mangle these in two ways: the
// JSON may arrive base64-encoded, and the private key's newlines may be
// escaped as literal `\n`. Both forms are fixed up here.
func ParseServiceAccount(raw string) ([]byte, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("service account credential is empty")
	}

	var account map[string]interface{}
	if err := json.Unmarshal([]byte(s), &account); err != nil {
		decoded, b64err := base64.StdEncoding.DecodeString(s)
		if b64err != nil {
			return nil, fmt.Errorf("service account is not valid JSON or base64: %w", err)
		}
		if err := json.Unmarshal(decoded, &account); err != nil {
			return nil, fmt.Errorf("decoded service account is not valid JSON: %w", err)
		}
	}

	if pk, ok := account["private_key"].(string); ok && strings.Contains(pk, `\n`) {
		account["private_key"] = strings.ReplaceAll(pk, `\n`, "\n")
	}

	return json.Marshal(account)
}
