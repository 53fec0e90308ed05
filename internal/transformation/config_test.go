package transformation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		expectErr bool
		check     func(t *testing.T, cfg *Config)
	}{
		{
			name:  "empty document",
			input: "  ",
			check: func(t *testing.T, cfg *Config) {
				assert.Nil(t, cfg.Request)
				assert.Nil(t, cfg.Response)
			},
		},
		{
			name: "json document",
			input: `{
				"request": {
					"add": [{"name": "x-added", "value": "a"}],
					"set": [{"name": "x-set", "value": "{{ header(\"x-in\") }}"}],
					"remove": ["x-gone"],
					"body": {"parseAs": "AsJson", "value": "{{ name }}"}
				},
				"response": {"set": [{"name": "x-resp", "value": "r"}]}
			}`,
			check: func(t *testing.T, cfg *Config) {
				require.NotNil(t, cfg.Request)
				assert.Equal(t, []NameValuePair{{Name: "x-added", Value: "a"}}, cfg.Request.Add)
				assert.Equal(t, `{{ header("x-in") }}`, cfg.Request.Set[0].Value)
				assert.Equal(t, []string{"x-gone"}, cfg.Request.Remove)
				require.NotNil(t, cfg.Request.Body)
				assert.Equal(t, AsJSON, cfg.Request.Body.ParseAs)
				require.NotNil(t, cfg.Response)
				assert.Equal(t, "x-resp", cfg.Response.Set[0].Name)
			},
		},
		{
			name:  "unknown fields are ignored",
			input: `{"request": {"remove": ["a"], "future": true}, "extra": 1}`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"a"}, cfg.Request.Remove)
			},
		},
		{
			name: "yaml document",
			input: `
response:
  set:
    - name: x-yaml
      value: '{{ request_header("x-id") }}'
  body:
    parseAs: AsString
    value: done
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Nil(t, cfg.Request)
				require.NotNil(t, cfg.Response)
				assert.Equal(t, "x-yaml", cfg.Response.Set[0].Name)
				assert.Equal(t, AsString, cfg.Response.Body.ParseAs)
			},
		},
		{
			name:      "malformed json",
			input:     `{"request": `,
			expectErr: true,
		},
		{
			name:      "unknown parseAs",
			input:     `{"request": {"body": {"parseAs": "AsXml"}}}`,
			expectErr: true,
		},
		{
			name:      "missing header name",
			input:     `{"response": {"set": [{"value": "x"}]}}`,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := ParseConfig([]byte(tt.input))
			if tt.expectErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cfg)
			tt.check(t, cfg)
		})
	}
}

func TestConfig_Validate_Messages(t *testing.T) {
	t.Parallel()

	cfg := &Config{Request: &Transform{Remove: []string{"ok", " "}}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request.remove[1]: header name is required")

	cfg = &Config{Response: &Transform{Body: &BodyTransform{ParseAs: "nope"}}}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "response.body")

	var nilCfg *Config
	assert.NoError(t, nilCfg.Validate())
}

func TestTransform_IsEmpty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		transform *Transform
		expected  bool
	}{
		{name: "nil", transform: nil, expected: true},
		{name: "zero value", transform: &Transform{}, expected: true},
		{name: "empty string body", transform: &Transform{Body: &BodyTransform{ParseAs: AsString}}, expected: true},
		{name: "default parse mode body", transform: &Transform{Body: &BodyTransform{}}, expected: true},
		{name: "json body without template", transform: &Transform{Body: &BodyTransform{ParseAs: AsJSON}}, expected: false},
		{name: "body template", transform: &Transform{Body: &BodyTransform{Value: "x"}}, expected: false},
		{name: "add", transform: &Transform{Add: []NameValuePair{{Name: "a"}}}, expected: false},
		{name: "set", transform: &Transform{Set: []NameValuePair{{Name: "a"}}}, expected: false},
		{name: "remove", transform: &Transform{Remove: []string{"a"}}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.transform.IsEmpty())
		})
	}
}
