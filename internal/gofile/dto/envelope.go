// Package dto holds the wire shapes of the GoFile API.
//
// Every endpoint has its own type. Values are validated and converted
// before leaving the gofile package; nothing in this package is used
// past the resolver.
package dto

import (
	"encoding/json"
	"fmt"
)

// StatusOK is the envelope status of a successful call.
const StatusOK = "ok"

// Envelope is the outer shape shared by every API response:
//
//	{"status": "ok", "data": {...}}
type Envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// OK reports whether the call succeeded.
func (e *Envelope) OK() bool {
	return e.Status == StatusOK
}

// Decode unmarshals the data payload into v.
func (e *Envelope) Decode(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return fmt.Errorf("response has no data")
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("malformed data: %w", err)
	}
	return nil
}

// Account is the data of POST /accounts.
type Account struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// Validate checks that a token was issued.
func (a *Account) Validate() error {
	if a.Token == "" {
		return fmt.Errorf("account response has no token")
	}
	return nil
}
