package transformation

// Direction identifies which message of an exchange is being transformed.
type Direction string

const (
	// DirectionRequest is the downstream request.
	DirectionRequest Direction = "request"

	// DirectionResponse is the upstream response.
	DirectionResponse Direction = "response"
)

// Operations is the contract the orchestrator uses to touch the live
// message. It is implemented by the host integration. Implementations must
// not panic; the boolean results report whether the host accepted the call.
type Operations interface {
	AddRequestHeader(key string, value []byte) bool
	SetRequestHeader(key string, value []byte) bool
	RemoveRequestHeader(key string) bool

	// ParseRequestJSONBody returns nil and no error when there is no body.
	ParseRequestJSONBody() (any, error)
	RequestBody() []byte
	DrainRequestBody(n int) bool
	AppendRequestBody(data []byte) bool

	AddResponseHeader(key string, value []byte) bool
	SetResponseHeader(key string, value []byte) bool
	RemoveResponseHeader(key string) bool

	// ParseResponseJSONBody returns nil and no error when there is no body.
	ParseResponseJSONBody() (any, error)
	ResponseBody() []byte
	DrainResponseBody(n int) bool
	AppendResponseBody(data []byte) bool
}

// drainAll asks the host to discard the whole buffered body.
const drainAll = int(^uint(0) >> 1)

// messageOps binds Operations to one direction so the orchestrator can
// treat requests and responses alike.
type messageOps struct {
	direction Direction
	add       func(key string, value []byte) bool
	set       func(key string, value []byte) bool
	remove    func(key string) bool
	parseJSON func() (any, error)
	body      func() []byte
	drain     func(n int) bool
	append    func(data []byte) bool
}

func requestOps(ops Operations) messageOps {
	return messageOps{
		direction: DirectionRequest,
		add:       ops.AddRequestHeader,
		set:       ops.SetRequestHeader,
		remove:    ops.RemoveRequestHeader,
		parseJSON: ops.ParseRequestJSONBody,
		body:      ops.RequestBody,
		drain:     ops.DrainRequestBody,
		append:    ops.AppendRequestBody,
	}
}

func responseOps(ops Operations) messageOps {
	return messageOps{
		direction: DirectionResponse,
		add:       ops.AddResponseHeader,
		set:       ops.SetResponseHeader,
		remove:    ops.RemoveResponseHeader,
		parseJSON: ops.ParseResponseJSONBody,
		body:      ops.ResponseBody,
		drain:     ops.DrainResponseBody,
		append:    ops.AppendResponseBody,
	}
}
