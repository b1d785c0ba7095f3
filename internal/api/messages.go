package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/nilcar/leads-console/internal/validate"
)

// TemplateMessage is an outbound WhatsApp template send.
type TemplateMessage struct {
	To          string            `json:"to"`
	TemplateSID string            `json:"templateSid"`
	Variables   map[string]string `json:"variables"`
}

// InternalChat asks the internal assistant one question.
func (c *Client) InternalChat(ctx context.Context, message string) (string, error) {
	var resp struct {
		Response *string `json:"response"`
	}
	body := map[string]string{"message": message}
	if err := c.do(ctx, http.MethodPost, "/internal-chat", nil, body, &resp); err != nil {
		return "", err
	}
	if resp.Response == nil {
		return "", &DecodeError{Endpoint: "POST /internal-chat", Err: fmt.Errorf("response missing")}
	}
	return *resp.Response, nil
}

// SendTemplate sends a pre-approved template to a phone number.
func (c *Client) SendTemplate(ctx context.Context, msg TemplateMessage) error {
	if err := (validate.Template{To: msg.To, TemplateSID: msg.TemplateSID, Variables: msg.Variables}).Validate(); err != nil {
		return err
	}
	msg.To = validate.Digits(msg.To)
	msg.TemplateSID = strings.TrimSpace(msg.TemplateSID)
	if msg.Variables == nil {
		msg.Variables = map[string]string{}
	}
	return c.do(ctx, http.MethodPost, "/whatsapp/messages/send-template", nil, msg, nil)
}
