package client

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexString decodes a JSON string or number into a string. The backend
// returns database ids either way.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	*s = FlexString(b)
	return nil
}

func (s FlexString) String() string { return string(s) }

// Number decodes a JSON number, a numeric string or null. Valid is false
// for null, empty or unparsable values.
type Number struct {
	Value float64
	Valid bool
}

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	*n = Number{Value: v, Valid: true}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// PostgresConfig is the database block of a user configuration.
type PostgresConfig struct {
	Host     string     `json:"host"`
	Port     FlexString `json:"port"`
	Database string     `json:"database"`
	Username string     `json:"username"`
	Password string     `json:"password"`
}

// Complete reports whether every credential needed to connect is present.
func (p PostgresConfig) Complete() bool {
	return p.Host != "" && p.Database != "" && p.Username != "" && p.Password != ""
}

// UserConfig is returned by the login endpoint.
type UserConfig struct {
	UserID            FlexString     `json:"user_id"`
	Email             string         `json:"email"`
	Name              string         `json:"name"`
	PlanType          string         `json:"plan_type"`
	StoragePreference string         `json:"storage_preference"`
	Postgres          PostgresConfig `json:"postgres"`
}

// Plan returns the user's plan, defaulting to free.
func (u *UserConfig) Plan() string {
	if u == nil || u.PlanType == "" {
		return "free"
	}
	return u.PlanType
}

// Form is a form registered on the backend.
type Form struct {
	ID            FlexString `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	FormCode      string     `json:"form_code"`
	ResponseCount Number     `json:"response_count"`
	MaxResponses  Number     `json:"max_responses"`
	StorageType   string     `json:"storage_type"`
	TableName     string     `json:"table_name"`
	CreatedAt     string     `json:"created_at"`
	CollectionURL string     `json:"collection_url"`
}

// FreeResponse is one response stored in the shared free table.
type FreeResponse struct {
	UniqueDisplayID string         `json:"unique_display_id"`
	FormTitle       string         `json:"form_title"`
	FormCode        string         `json:"form_code"`
	Latitude        Number         `json:"latitude"`
	Longitude       Number         `json:"longitude"`
	Accuracy        Number         `json:"accuracy"`
	CreatedAt       string         `json:"created_at"`
	Data            map[string]any `json:"data"`
}

// CreateFormResult is returned by the create-form endpoint.
type CreateFormResult struct {
	Success       bool       `json:"success"`
	FormID        FlexString `json:"form_id"`
	FormCode      string     `json:"form_code"`
	CollectionURL string     `json:"collection_url"`
	StorageType   string     `json:"storage_type"`
	TableName     string     `json:"table_name"`
}

// Message is the banner configured by the backend administrator.
type Message struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Dismissible bool   `json:"dismissible"`
	ShowTo      string `json:"show_to"`
	Timestamp   int64  `json:"timestamp"`
}

// PluginMessage wraps the optional banner.
type PluginMessage struct {
	Enabled bool     `json:"enabled"`
	Message *Message `json:"message"`
}

// Visible reports whether there is a banner with title and content to show.
func (m PluginMessage) Visible() bool {
	return m.Enabled && m.Message != nil &&
		strings.TrimSpace(m.Message.Title) != "" && strings.TrimSpace(m.Message.Content) != ""
}

type successResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type apiError struct {
	Error string `json:"error"`
}
