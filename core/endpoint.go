package core

// EndpointProvider provides a list of endpoints to register dynamically
type EndpointProvider interface {
	GetEndpoints() []Endpoint
}

// Endpoint is a framework-agnostic console view. Adapters bind a handler
// to each endpoint by its OperationID.
type Endpoint struct {
	Path     string
	Method   string
	Metadata EndpointMetadata
}

type EndpointMetadata struct {
	OperationID        string
	Description        string
	RequiresSession    bool
	RequiresSuperAdmin bool
}

// ErrorResponse represents an error response structure
type ErrorResponse struct {
	Error  string `json:"error"`
	Kind   Kind   `json:"kind,omitempty"`
	Detail string `json:"detail,omitempty"`
}
