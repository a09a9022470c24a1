package llms

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// JSON models following the OpenAI schema.

// messageJSON represents the JSON structure for Message.
type messageJSON struct {
	Role Role   `json:"role"`
	Text string `json:"text,omitempty"`
}

// contentPartJSON represents the JSON structure for content parts.
type contentPartJSON struct {
	Type         string            `json:"type"`
	Text         string            `json:"text,omitempty"`
	ToolCall     *toolCallJSON     `json:"tool_call,omitempty"`
	ToolResponse *toolResponseJSON `json:"tool_response,omitempty"`
}

type toolCallJSON struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	FunctionCall *FunctionCall `json:"function"`
}

type toolResponseJSON struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// MarshalJSON implements json.Marshaler for Message.
func (m Message) MarshalJSON() ([]byte, error) {
	// Special case: single text part can be simplified
	if len(m.Parts) == 1 {
		if tp, hasSingleTextPart := m.Parts[0].(TextContent); hasSingleTextPart {
			return json.Marshal(messageJSON{
				Role: m.Role,
				Text: tp.Text,
			})
		}
	}

	return json.Marshal(struct {
		Role  Role          `json:"role"`
		Parts []ContentPart `json:"parts"`
	}{
		Role:  m.Role,
		Parts: m.Parts,
	})
}

// UnmarshalJSON implements json.Unmarshaler for Message.
func (m *Message) UnmarshalJSON(data []byte) error {
	var msgJSON struct {
		Role  Role              `json:"role"`
		Text  string            `json:"text"`
		Parts []json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(data, &msgJSON); err != nil {
		return err
	}

	m.Role = msgJSON.Role
	m.Parts = nil

	// Handle special case: single text field
	if msgJSON.Text != "" {
		m.Parts = []ContentPart{TextContent{Text: msgJSON.Text}}
		return nil
	}

	for _, partData := range msgJSON.Parts {
		var partJSON contentPartJSON
		if err := json.Unmarshal(partData, &partJSON); err != nil {
			return err
		}
		part, err := unmarshalContentPart(partJSON)
		if err != nil {
			return err
		}
		m.Parts = append(m.Parts, part)
	}

	return nil
}

// unmarshalContentPart converts contentPartJSON to ContentPart.
func unmarshalContentPart(partJSON contentPartJSON) (ContentPart, error) {
	switch partJSON.Type {
	case "text", "":
		return TextContent{Text: partJSON.Text}, nil
	case "tool_call":
		if partJSON.ToolCall == nil {
			return nil, errors.New("tool_call field is required for tool_call type")
		}
		fc := partJSON.ToolCall.FunctionCall
		if fc == nil {
			fc = &FunctionCall{}
		}
		return ToolCall{
			ID:           partJSON.ToolCall.ID,
			Type:         partJSON.ToolCall.Type,
			FunctionCall: fc,
		}, nil
	case "tool_response":
		if partJSON.ToolResponse == nil {
			return nil, errors.New("tool_response field is required for tool_response type")
		}
		return ToolCallResponse{
			ToolCallID: partJSON.ToolResponse.ToolCallID,
			Name:       partJSON.ToolResponse.Name,
			Content:    partJSON.ToolResponse.Content,
			IsError:    partJSON.ToolResponse.IsError,
		}, nil
	default:
		return nil, errors.Newf("unknown content type: '%s'", partJSON.Type)
	}
}

// MarshalJSON implements json.Marshaler for TextContent.
func (tc TextContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(contentPartJSON{
		Type: "text",
		Text: tc.Text,
	})
}

// UnmarshalJSON implements json.Unmarshaler for TextContent.
func (tc *TextContent) UnmarshalJSON(data []byte) error {
	var partJSON contentPartJSON
	if err := json.Unmarshal(data, &partJSON); err != nil {
		return err
	}
	if partJSON.Type != "text" && partJSON.Type != "" {
		return errors.Newf("invalid type for TextContent: %v", partJSON.Type)
	}
	tc.Text = partJSON.Text
	return nil
}

// MarshalJSON implements json.Marshaler for ToolCall.
func (tc ToolCall) MarshalJSON() ([]byte, error) {
	return json.Marshal(contentPartJSON{
		Type: "tool_call",
		ToolCall: &toolCallJSON{
			ID:           tc.ID,
			Type:         tc.Type,
			FunctionCall: tc.FunctionCall,
		},
	})
}

// UnmarshalJSON implements json.Unmarshaler for ToolCall.
func (tc *ToolCall) UnmarshalJSON(data []byte) error {
	var partJSON contentPartJSON
	if err := json.Unmarshal(data, &partJSON); err != nil {
		return err
	}
	if partJSON.Type != "tool_call" || partJSON.ToolCall == nil {
		return errors.Newf("invalid type for ToolCall: %v", partJSON.Type)
	}
	if partJSON.ToolCall.ID == "" {
		return errors.New("missing id field in ToolCall")
	}
	tc.ID = partJSON.ToolCall.ID
	tc.Type = partJSON.ToolCall.Type
	tc.FunctionCall = partJSON.ToolCall.FunctionCall
	if tc.FunctionCall == nil {
		tc.FunctionCall = &FunctionCall{}
	}
	return nil
}

// MarshalJSON implements json.Marshaler for ToolCallResponse.
func (tc ToolCallResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(contentPartJSON{
		Type: "tool_response",
		ToolResponse: &toolResponseJSON{
			ToolCallID: tc.ToolCallID,
			Name:       tc.Name,
			Content:    tc.Content,
			IsError:    tc.IsError,
		},
	})
}

// UnmarshalJSON implements json.Unmarshaler for ToolCallResponse.
func (tc *ToolCallResponse) UnmarshalJSON(data []byte) error {
	var partJSON contentPartJSON
	if err := json.Unmarshal(data, &partJSON); err != nil {
		return err
	}
	if partJSON.Type != "tool_response" || partJSON.ToolResponse == nil {
		return errors.Newf("invalid type for ToolCallResponse: %v", partJSON.Type)
	}
	if partJSON.ToolResponse.ToolCallID == "" {
		return errors.New("missing tool_call_id field in ToolCallResponse")
	}
	tc.ToolCallID = partJSON.ToolResponse.ToolCallID
	tc.Name = partJSON.ToolResponse.Name
	tc.Content = partJSON.ToolResponse.Content
	tc.IsError = partJSON.ToolResponse.IsError
	return nil
}
