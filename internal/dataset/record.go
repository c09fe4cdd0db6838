package dataset

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TurnRecord struct {
	Messages []Turn `json:"messages"`
}

// ValidateRecord parses one dataset line and checks the conversational schema:
// a non-empty "messages" array whose entries alternate user/assistant,
// starting with user, each with non-blank string content.
func ValidateRecord(text string, lineNo int) (*TurnRecord, error) {
	raw := []byte(strings.TrimSpace(text))

	if !json.Valid(raw) {
		return nil, formatErrorf(lineNo, "not valid JSON")
	}

	if !isJSONObject(raw) {
		return nil, formatErrorf(lineNo, "entry must be an object")
	}

	var entry map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, formatErrorf(lineNo, "not valid JSON")
	}

	var messages []json.RawMessage
	if rawMessages, ok := entry["messages"]; ok && isJSONArray(rawMessages) {
		if err := json.Unmarshal(rawMessages, &messages); err != nil {
			return nil, schemaErrorf(lineNo, -1, `"messages" must be a non-empty array`)
		}
	}
	if len(messages) == 0 {
		return nil, schemaErrorf(lineNo, -1, `"messages" must be a non-empty array`)
	}

	record := &TurnRecord{Messages: make([]Turn, 0, len(messages))}
	for idx, rawMsg := range messages {
		turn, err := validateTurn(rawMsg, lineNo, idx)
		if err != nil {
			return nil, err
		}
		record.Messages = append(record.Messages, turn)
	}

	return record, nil
}

func validateTurn(raw json.RawMessage, lineNo, idx int) (Turn, error) {
	if !isJSONObject(raw) {
		return Turn{}, schemaErrorf(lineNo, idx, "messages[%d] must be an object", idx)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Turn{}, schemaErrorf(lineNo, idx, "messages[%d] must be an object", idx)
	}

	role, ok := jsonString(fields["role"])
	if !ok || (role != RoleUser && role != RoleAssistant) {
		return Turn{}, schemaErrorf(lineNo, idx, `messages[%d].role must be "user" or "assistant"`, idx)
	}

	expected := ExpectedRole(idx)
	if role != expected {
		return Turn{}, schemaErrorf(lineNo, idx, `messages[%d] should have role "%s"`, idx, expected)
	}

	content, ok := jsonString(fields["content"])
	if !ok || strings.TrimSpace(content) == "" {
		return Turn{}, schemaErrorf(lineNo, idx, "messages[%d].content must be a non-empty string", idx)
	}

	return Turn{Role: role, Content: content}, nil
}

// ExpectedRole is the role required at a 0-based message index.
func ExpectedRole(idx int) string {
	if idx%2 == 0 {
		return RoleUser
	}
	return RoleAssistant
}

func jsonString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func isJSONObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func isJSONArray(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}
