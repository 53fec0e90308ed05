// Package transformation implements the template-driven header and body
// transformation engine used by the gateway.
//
// A policy document declares, for the request and for the response, ordered
// lists of header add/set/remove operations and an optional body template.
// Templates use the pongo2 (Django-style) dialect: {{ }} expressions,
// {% if %}/{% for %}/{% set %}/{% with %} tags, {%- -%} whitespace control
// and filters with colon arguments such as {{ name|default:"x" }}. Jinja-only
// forms like ~ concatenation, "is" tests or filter(args) calls do not
// compile. Templates cannot read files: include, ssi, import and extends are
// rejected. Each policy's templates are compiled once into an immutable
// Registry that is safe for concurrent use:
//
//	policy, err := transformation.ParsePolicy([]byte(`{
//	  "request": {
//	    "set": [{"name": "x-user", "value": "{{ user.name }}"}],
//	    "body": {"parseAs": "AsJson", "value": ""}
//	  }
//	}`))
//	if err != nil {
//	    return err
//	}
//
//	err = policy.TransformRequest(requestHeaders, ops)
//	if transformation.IsCritical(err) {
//	    // reject the message with 400
//	}
//
// The live message is only touched through the Operations interface, which
// is implemented by the host integration (see internal/middleware).
//
// # Template functions
//
// Every template can call substring, header, request_header, body, context,
// env, base64_encode, base64_decode, base64url_encode, base64url_decode,
// replace_with_random, replace_with_string and raw_string.
//
// # Errors
//
// Two failure classes abort a transformation: a template that references
// JSON body fields while the body was not parsed as JSON
// (ErrUndeclaredJSONVariables), and a body that fails to parse as JSON
// (ErrBodyParse). Every other failure is recorded, the affected header is
// removed or skipped, and all of them are returned as one combined error
// after the remaining operations have been applied.
package transformation
