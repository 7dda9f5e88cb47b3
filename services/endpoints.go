package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lborres/blogdesk/core"
)

// BaseEndpoints returns framework-agnostic descriptions of the console
// views. Adapters bind a handler to each by OperationID.
func BaseEndpoints() []core.Endpoint {
	return []core.Endpoint{
		{
			Path:   "/session",
			Method: "GET",
			Metadata: core.EndpointMetadata{
				OperationID: "getSession",
				Description: "Report the session state and the current operator",
			},
		},
		{
			Path:   "/session/login",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: "login",
				Description: "Log in with identifier and secret, optionally against the local store",
			},
		},
		{
			Path:   "/session/logout",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: "logout",
				Description: "Clear the session; safe to repeat",
			},
		},
		{
			Path:   "/dashboard",
			Method: "GET",
			Metadata: core.EndpointMetadata{
				OperationID:     "getDashboard",
				Description:     "Blog and admin totals with recent activity",
				RequiresSession: true,
			},
		},
		{
			Path:   "/admins",
			Method: "GET",
			Metadata: core.EndpointMetadata{
				OperationID:     "listAdmins",
				Description:     "List admin accounts, filtered by ?q=",
				RequiresSession: true,
			},
		},
		{
			Path:   "/admins",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID:        "createAdmin",
				Description:        "Create an admin account",
				RequiresSession:    true,
				RequiresSuperAdmin: true,
			},
		},
		{
			Path:   "/admins/:id",
			Method: "PUT",
			Metadata: core.EndpointMetadata{
				OperationID:        "updateAdmin",
				Description:        "Update an admin account",
				RequiresSession:    true,
				RequiresSuperAdmin: true,
			},
		},
		{
			Path:   "/admins/:id",
			Method: "DELETE",
			Metadata: core.EndpointMetadata{
				OperationID:        "deleteAdmin",
				Description:        "Delete an admin account; the bootstrap account is refused",
				RequiresSession:    true,
				RequiresSuperAdmin: true,
			},
		},
		{
			Path:   "/blogs",
			Method: "GET",
			Metadata: core.EndpointMetadata{
				OperationID: "listBlogs",
				Description: "List posts newest first with ?skip=&limit=&q=&status=",
			},
		},
		{
			Path:   "/blogs",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID:     "createBlog",
				Description:     "Create a post",
				RequiresSession: true,
			},
		},
		{
			Path:   "/blogs/summary",
			Method: "GET",
			Metadata: core.EndpointMetadata{
				OperationID: "blogSummary",
				Description: "Count posts by status",
			},
		},
		{
			Path:   "/blogs/:id",
			Method: "GET",
			Metadata: core.EndpointMetadata{
				OperationID: "getBlog",
				Description: "Read one post",
			},
		},
		{
			Path:   "/blogs/:id",
			Method: "PUT",
			Metadata: core.EndpointMetadata{
				OperationID:     "updateBlog",
				Description:     "Update the given fields of a post",
				RequiresSession: true,
			},
		},
		{
			Path:   "/blogs/:id",
			Method: "DELETE",
			Metadata: core.EndpointMetadata{
				OperationID:     "deleteBlog",
				Description:     "Delete a post",
				RequiresSession: true,
			},
		},
		{
			Path:   "/logs",
			Method: "GET",
			Metadata: core.EndpointMetadata{
				OperationID:     "listActivity",
				Description:     "Activity log with ?date=&actor=&action=&limit=",
				RequiresSession: true,
			},
		},
	}
}

// EndpointRegistry holds the console endpoints keyed by "METHOD:PATH" and
// rejects duplicates.
type EndpointRegistry struct {
	endpoints map[string]*core.Endpoint
}

// NewEndpointRegistry creates a registry with BaseEndpoints registered.
func NewEndpointRegistry() *EndpointRegistry {
	reg := &EndpointRegistry{
		endpoints: make(map[string]*core.Endpoint),
	}

	base := BaseEndpoints()
	for i := range base {
		_ = reg.register(&base[i])
	}
	return reg
}

func endpointKey(ep *core.Endpoint) string {
	return fmt.Sprintf("%s:%s", ep.Method, ep.Path)
}

func (r *EndpointRegistry) register(ep *core.Endpoint) error {
	key := endpointKey(ep)
	if _, exists := r.endpoints[key]; exists {
		return fmt.Errorf("endpoint conflict: %s %s already registered", ep.Method, ep.Path)
	}
	r.endpoints[key] = ep
	return nil
}

// RegisterPlugin adds extra endpoints. Nothing is registered if any of them
// conflicts with an existing endpoint or with another in the batch.
func (r *EndpointRegistry) RegisterPlugin(endpoints []core.Endpoint) error {
	seen := make(map[string]bool)
	for i := range endpoints {
		ep := &endpoints[i]
		key := endpointKey(ep)

		if _, exists := r.endpoints[key]; exists {
			return fmt.Errorf("plugin endpoint conflict: %s %s already registered", ep.Method, ep.Path)
		}
		if seen[key] {
			return fmt.Errorf("plugin contains duplicate endpoint: %s %s", ep.Method, ep.Path)
		}
		seen[key] = true
	}

	for i := range endpoints {
		r.endpoints[endpointKey(&endpoints[i])] = &endpoints[i]
	}
	return nil
}

// Endpoints returns every registered endpoint, static paths before
// parameterized ones so routers that match in order see "/blogs/summary"
// before "/blogs/:id".
func (r *EndpointRegistry) Endpoints() []*core.Endpoint {
	result := make([]*core.Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		result = append(result, ep)
	}
	sort.Slice(result, func(i, j int) bool {
		pi, pj := strings.Contains(result[i].Path, ":"), strings.Contains(result[j].Path, ":")
		if pi != pj {
			return pj
		}
		if result[i].Path != result[j].Path {
			return result[i].Path < result[j].Path
		}
		return result[i].Method < result[j].Method
	})
	return result
}

// Lookup finds an endpoint by OperationID.
func (r *EndpointRegistry) Lookup(operationID string) (*core.Endpoint, bool) {
	for _, ep := range r.endpoints {
		if ep.Metadata.OperationID == operationID {
			return ep, true
		}
	}
	return nil, false
}
