package transformation

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// BodyParseBehavior controls how the message body is prepared before the
// body template is rendered.
type BodyParseBehavior string

const (
	// AsString leaves the body untouched; templates see it only through body().
	AsString BodyParseBehavior = "AsString"

	// AsJSON parses the body as JSON and exposes its top-level fields to templates.
	AsJSON BodyParseBehavior = "AsJson"
)

// IsJSON reports whether the body must be parsed as JSON.
func (b BodyParseBehavior) IsJSON() bool {
	return b == AsJSON
}

// Validate checks that the behavior is one of the known values.
// The empty value is accepted and means AsString.
func (b BodyParseBehavior) Validate() error {
	switch b {
	case "", AsString, AsJSON:
		return nil
	default:
		return fmt.Errorf("%w: unknown parseAs %q", ErrInvalidConfig, string(b))
	}
}

// Config is a transformation policy document.
type Config struct {
	Request  *Transform `json:"request,omitempty" yaml:"request,omitempty"`
	Response *Transform `json:"response,omitempty" yaml:"response,omitempty"`
}

// Transform describes the operations applied to a single message.
// The order of Add, Set and Remove entries is the order they are applied in.
type Transform struct {
	Add    []NameValuePair `json:"add,omitempty" yaml:"add,omitempty"`
	Set    []NameValuePair `json:"set,omitempty" yaml:"set,omitempty"`
	Remove []string        `json:"remove,omitempty" yaml:"remove,omitempty"`
	Body   *BodyTransform  `json:"body,omitempty" yaml:"body,omitempty"`
}

// IsEmpty reports whether the transform has nothing to do.
func (t *Transform) IsEmpty() bool {
	if t == nil {
		return true
	}
	return len(t.Add) == 0 &&
		len(t.Set) == 0 &&
		len(t.Remove) == 0 &&
		t.Body.IsEmpty()
}

// BodyTransform rewrites the message body.
type BodyTransform struct {
	ParseAs BodyParseBehavior `json:"parseAs,omitempty" yaml:"parseAs,omitempty"`
	Value   string            `json:"value,omitempty" yaml:"value,omitempty"`
}

// IsEmpty reports whether the body transform requires any work. A body with
// an empty template still needs work in AsJson mode, because the parsed
// fields are available to the header templates.
func (b *BodyTransform) IsEmpty() bool {
	if b == nil {
		return true
	}
	return b.Value == "" && !b.ParseAs.IsJSON()
}

// NameValuePair is a header name and the template producing its value.
type NameValuePair struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

// ParseConfig parses a policy document. JSON is tried first and YAML is
// used as a fallback; unknown fields are ignored in both cases.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return &cfg, nil
	}

	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the structural constraints of the policy document.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if err := c.Request.validate("request"); err != nil {
		return err
	}
	return c.Response.validate("response")
}

func (t *Transform) validate(direction string) error {
	if t == nil {
		return nil
	}
	for i, p := range t.Add {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: %s.add[%d]: header name is required", ErrInvalidConfig, direction, i)
		}
	}
	for i, p := range t.Set {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: %s.set[%d]: header name is required", ErrInvalidConfig, direction, i)
		}
	}
	for i, name := range t.Remove {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: %s.remove[%d]: header name is required", ErrInvalidConfig, direction, i)
		}
	}
	if t.Body != nil {
		if err := t.Body.ParseAs.Validate(); err != nil {
			return fmt.Errorf("%s.body: %w", direction, err)
		}
	}
	return nil
}
