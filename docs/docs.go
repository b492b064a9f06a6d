// Package docs registers the OpenAPI document of the KaiROS HTTP API with
// swag. Regenerate with `swag init -g cmd/kairosd/docs.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {"name": "kairos maintainers"},
        "license": {"name": "MIT", "url": "https://opensource.org/licenses/MIT"},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "description": "Reports liveness and the active model (\"none\" when nothing is loaded).",
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.HealthResponse"}}}
            }
        },
        "/models": {
            "get": {
                "description": "Lists downloaded models in the OpenAI list shape.",
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "List models",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}}
            }
        },
        "/status": {
            "get": {
                "description": "Session state, catalog, hardware and last generation statistics.",
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}}
            }
        },
        "/chat": {
            "post": {
                "description": "Generates a complete reply to the conversation.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["chat"],
                "summary": "Chat",
                "parameters": [{"description": "Conversation", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.ChatRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ChatResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/chat/stream": {
            "post": {
                "description": "Streams the reply as server-sent events: data: {\"content\": \"...\"} per fragment, then data: [DONE].",
                "consumes": ["application/json"],
                "produces": ["text/event-stream"],
                "tags": ["chat"],
                "summary": "Streaming chat",
                "parameters": [{"description": "Conversation", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.ChatRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ChatChunk"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/events": {
            "get": {
                "description": "Streams download, load and generation events as server-sent events until the client disconnects.",
                "produces": ["text/event-stream"],
                "tags": ["system"],
                "summary": "Lifecycle events",
                "responses": {}
            }
        }
    },
    "definitions": {
        "types.ChatMessage": {
            "type": "object",
            "properties": {
                "role": {"type": "string", "example": "user"},
                "content": {"type": "string", "example": "Hello!"}
            }
        },
        "types.ChatRequest": {
            "type": "object",
            "properties": {
                "messages": {"type": "array", "items": {"$ref": "#/definitions/types.ChatMessage"}}
            }
        },
        "types.ChatResponse": {
            "type": "object",
            "properties": {
                "model": {"type": "string", "example": "tinyllama-1.1b-chat.Q4_K_M.gguf"},
                "content": {"type": "string"},
                "token_count": {"type": "integer", "example": 42}
            }
        },
        "types.ChatChunk": {
            "type": "object",
            "properties": {"content": {"type": "string"}}
        },
        "types.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "ok"},
                "model": {"type": "string", "example": "none"},
                "version": {"type": "string", "example": "1.0.0"}
            }
        },
        "types.ModelInfo": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "object": {"type": "string"},
                "created": {"type": "integer"},
                "owned_by": {"type": "string"}
            }
        },
        "types.ModelsResponse": {
            "type": "object",
            "properties": {
                "object": {"type": "string", "example": "list"},
                "data": {"type": "array", "items": {"$ref": "#/definitions/types.ModelInfo"}}
            }
        },
        "types.APIError": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "Messages array is required"},
                "type": {"type": "string", "example": "invalid_request_error"},
                "code": {"type": "integer", "example": 400}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"$ref": "#/definitions/types.APIError"}}
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "state": {"type": "string", "example": "loaded"},
                "active_model": {"type": "string"},
                "gpu_layers": {"type": "integer", "example": 32},
                "backend": {"type": "string", "example": "cuda"},
                "last_error": {"type": "string"},
                "uptime_seconds": {"type": "integer"},
                "queue_len": {"type": "integer"},
                "inflight": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "KaiROS API",
	Description:      "Loopback HTTP API for local model management and chat.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
