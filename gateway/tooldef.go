package gateway

// ToolDef describes a tool the agent gateway may be told about during
// its handshake (OpenAI function-calling JSON-Schema shape).
type ToolDef struct {
	Type     string      `json:"type"` // "function"
	Function FunctionDef `json:"function"`
}

// FunctionDef is the JSON-Schema-shaped function signature inside a
// ToolDef.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
