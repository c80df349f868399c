package api

import "strings"

// routeDoc describes one route for the OpenAPI document.
type routeDoc struct {
	method  string
	path    string
	summary string
	// security is "bearer", "bridge" or "" for none.
	security string
	scope    string
	status   string
}

var routeDocs = []routeDoc{
	{"get", "/healthz", "Liveness and counts", "", "", "200"},
	{"get", "/metrics", "Prometheus exposition", "", "", "200"},
	{"post", "/pipeline/run", "Run a query through the stage pipeline", "bearer", "pipeline:rw", "200"},
	{"get", "/pipeline/tasks", "List pipeline tasks", "bearer", "pipeline:ro", "200"},
	{"get", "/pipeline/tasks/{taskID}", "Get a pipeline task", "bearer", "pipeline:ro", "200"},
	{"get", "/pipeline/capabilities", "Local and remote capability sets", "bearer", "pipeline:ro", "200"},
	{"post", "/pipeline/route", "Route a task type", "bearer", "pipeline:ro", "200"},
	{"post", "/policy/select", "Select policy layers for a query", "bearer", "pipeline:ro", "200"},
	{"get", "/events", "Server-sent event stream", "bearer", "events:ro", "200"},
	{"post", "/bridge/dispatch", "Queue a task for out-of-band execution", "bridge", "", "202"},
	{"get", "/bridge/session/{sessionID}/status", "Poll a bridge task", "bridge", "", "200"},
	{"get", "/bridge/tasks", "List bridge tasks", "bridge", "", "200"},
	{"get", "/bridge/health", "Bridge health", "", "", "200"},
	{"post", "/bridge/handshake", "Verify gateway connectivity and secret", "bridge", "", "200"},
}

// buildOpenAPIDoc returns an OpenAPI 3.1 document for the served routes.
func buildOpenAPIDoc() map[string]any {
	paths := map[string]any{}
	for _, rd := range routeDocs {
		item, _ := paths[rd.path].(map[string]any)
		if item == nil {
			item = map[string]any{}
			paths[rd.path] = item
		}

		responses := map[string]any{
			rd.status: map[string]any{"description": "OK"},
		}
		op := map[string]any{
			"operationId": operationID(rd.method, rd.path),
			"summary":     rd.summary,
			"tags":        []string{strings.Split(strings.TrimPrefix(rd.path, "/"), "/")[0]},
			"responses":   responses,
		}
		switch rd.security {
		case "bearer":
			op["security"] = []any{map[string]any{"BearerAuth": []string{rd.scope}}}
			responses["401"] = map[string]any{"description": "Missing or invalid token"}
			responses["403"] = map[string]any{"description": "Insufficient scope"}
		case "bridge":
			op["security"] = []any{map[string]any{"BridgeKey": []string{}}}
			responses["401"] = map[string]any{"description": "Invalid bridge key"}
			responses["409"] = map[string]any{"description": "Bridge disabled"}
		}
		item[rd.method] = op
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "Switchyard",
			"version": "1.0",
		},
		"paths": paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
				"BridgeKey": map[string]any{
					"type": "apiKey",
					"in":   "header",
					"name": "X-Bridge-Key",
				},
			},
		},
	}
}

func operationID(method, path string) string {
	r := strings.NewReplacer("/", "_", "{", "", "}", "")
	return method + r.Replace(path)
}
