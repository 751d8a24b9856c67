package session

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Part types.
const (
	PartText  = "text"
	PartImage = "image"
)

// Message is one role-tagged conversation entry. Content holds plain text;
// Parts holds a multi-part payload (text plus images) and is only used for
// the first user turn. On the wire Content is a string when Parts is empty
// and an array of parts otherwise, matching the Messages API shape.
type Message struct {
	Role    string
	Content string
	Parts   []Part
}

// Part is one element of a multi-part message.
type Part struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource is an inline base64 image.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// UserText creates a plain-text user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantText creates a plain-text assistant message.
func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// TextPart creates a text part.
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// ImagePart creates a base64 image part.
func ImagePart(mediaType, data string) Part {
	return Part{
		Type: PartImage,
		Source: &ImageSource{
			Type:      "base64",
			MediaType: mediaType,
			Data:      data,
		},
	}
}

// Text returns the textual content, joining text parts for multi-part messages.
func (m Message) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// ImageCount returns the number of image parts.
func (m Message) ImageCount() int {
	n := 0
	for _, p := range m.Parts {
		if p.Type == PartImage {
			n++
		}
	}
	return n
}

type wireMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// MarshalJSON encodes Content as a string or Parts as an array.
func (m Message) MarshalJSON() ([]byte, error) {
	var content []byte
	var err error
	if len(m.Parts) > 0 {
		content, err = json.Marshal(m.Parts)
	} else {
		content, err = json.Marshal(m.Content)
	}
	if err != nil {
		return nil, fmt.Errorf("marshaling message content: %w", err)
	}
	return json.Marshal(wireMessage{Role: m.Role, Content: content})
}

// UnmarshalJSON accepts either content shape.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Role = wire.Role
	m.Content = ""
	m.Parts = nil

	trimmed := strings.TrimSpace(string(wire.Content))
	switch {
	case trimmed == "" || trimmed == "null":
		return nil
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal(wire.Content, &m.Parts); err != nil {
			return fmt.Errorf("parsing message parts: %w", err)
		}
	default:
		if err := json.Unmarshal(wire.Content, &m.Content); err != nil {
			return fmt.Errorf("parsing message content: %w", err)
		}
	}
	return nil
}
