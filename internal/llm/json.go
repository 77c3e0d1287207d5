package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jimezsa/jobpilot/internal/schemas"
)

// InvokeJSON invokes req, strips any code fence, validates the body against
// req.Schema and decodes it into out.
func InvokeJSON(ctx context.Context, inv Invoker, req Request, out any) error {
	raw, err := inv.Invoke(ctx, req)
	if err != nil {
		return err
	}
	body := CleanJSONBlock(raw)
	if req.Schema != "" {
		if err := schemas.Validate(req.Schema, body); err != nil {
			return err
		}
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("decode model response: %w", err)
	}
	return nil
}

// CleanJSONBlock removes markdown code fences around a JSON response.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Skip a language tag on the fence line.
		if idx := strings.Index(text, "\n"); idx >= 0 {
			first := text[:idx]
			if len(first) < 20 && !strings.Contains(first, " ") && !strings.Contains(first, "{") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}

	return text
}
