package users

import "strings"

// Collection is where account records live in the document store.
const Collection = "users"

// Account captures one registered user: identity fields, group membership,
// the supervisor used by reporter-field approval policies, and the
// attestation certificate generated exactly once at account creation.
type Account struct {
	Username         string
	Email            string
	DisplayName      string
	Group            string
	Supervisor       string
	Certificate      string
	CreatedAtSeconds int64
}

// Field resolves a named account field by its persisted key, used by
// approval policies that read the approver off the reporter's own record.
func (a Account) Field(name string) (string, bool) {
	switch name {
	case "Username":
		return a.Username, true
	case "Email":
		return a.Email, true
	case "DisplayName":
		return a.DisplayName, true
	case "Group":
		return a.Group, true
	case "Supervisor":
		return a.Supervisor, true
	default:
		return "", false
	}
}

func (a Account) encode() map[string]any {
	return map[string]any{
		"Username":    a.Username,
		"Email":       a.Email,
		"DisplayName": a.DisplayName,
		"Group":       a.Group,
		"Supervisor":  a.Supervisor,
		"Certificate": a.Certificate,
		"Created_At":  a.CreatedAtSeconds,
	}
}

func decodeAccount(body map[string]any) Account {
	account := Account{
		Username:    asString(body["Username"]),
		Email:       asString(body["Email"]),
		DisplayName: asString(body["DisplayName"]),
		Group:       asString(body["Group"]),
		Supervisor:  asString(body["Supervisor"]),
		Certificate: asString(body["Certificate"]),
	}
	if number, ok := body["Created_At"].(float64); ok {
		account.CreatedAtSeconds = int64(number)
	}
	return account
}

func asString(raw any) string {
	text, _ := raw.(string)
	return text
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}
