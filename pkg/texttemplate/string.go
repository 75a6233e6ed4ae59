package texttemplate

import (
	"fmt"
)

// TemplateString is a template stored in a configuration field.
type TemplateString string

func (t TemplateString) Validate() error {
	if _, err := New().Compile(string(t)); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}
	return nil
}

func (t TemplateString) Render(ctx Context) (string, error) {
	out, err := New().Render(string(t), ctx, true)
	if err != nil {
		return "", fmt.Errorf("rendering template: %w", err)
	}
	return out, nil
}
