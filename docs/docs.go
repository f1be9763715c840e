// Package docs registers the OpenAPI document served at /swagger. Regenerate
// with `swag init -g cmd/server/main.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/webhook": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["notifications"],
                "summary": "Ingest a payment notification",
                "parameters": [
                    {"type": "string", "description": "Idempotency key", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Notification", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/services.Notification"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.WebhookResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/notifications": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["notifications"],
                "summary": "List stored notifications",
                "parameters": [
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"},
                    {"type": "string", "name": "device_id", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/devices": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["notifications"],
                "summary": "List known devices",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/stats": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["notifications"],
                "summary": "Ingestion statistics",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/public/donations": {
            "get": {
                "produces": ["application/json"],
                "tags": ["donations"],
                "summary": "Recent donation feed",
                "parameters": [{"type": "integer", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.FeedResponse"}}}
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["donations"],
                "summary": "Attach donor metadata to a donation",
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/api/v1/qris/settings": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["qris"],
                "summary": "Current base payload",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "put": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["qris"],
                "summary": "Replace the base payload",
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/api/v1/qris/generate": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["qris"],
                "summary": "Generate a dynamic QRIS payload and open a session",
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}
            }
        },
        "/api/v1/qris/session": {
            "get": {
                "produces": ["application/json"],
                "tags": ["qris"],
                "summary": "Active donation session",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "delete": {
                "tags": ["qris"],
                "summary": "Clear the active session",
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/api/v1/qris/presets": {
            "get": {
                "produces": ["application/json"],
                "tags": ["qris"],
                "summary": "Preset amounts",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/donations/live": {
            "get": {
                "tags": ["donations"],
                "summary": "Websocket stream of matcher events",
                "responses": {"101": {"description": "Switching Protocols"}, "426": {"description": "Upgrade Required"}}
            }
        }
    },
    "definitions": {
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "request_id": {"type": "string"},
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "handlers.WebhookResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "id": {"type": "integer"},
                "timestamp": {"type": "string"}
            }
        },
        "services.Notification": {
            "type": "object",
            "properties": {
                "deviceId": {"type": "string"},
                "packageName": {"type": "string"},
                "appName": {"type": "string"},
                "postedAt": {"type": "string"},
                "title": {"type": "string"},
                "text": {"type": "string"},
                "subText": {"type": "string"},
                "bigText": {"type": "string"},
                "channelId": {"type": "string"},
                "notificationId": {"type": "integer"},
                "amountDetected": {"type": "string"},
                "extras": {"type": "object"}
            }
        },
        "domain.FeedResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {"type": "array", "items": {"type": "object"}},
                "count": {"type": "integer"},
                "error": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "X-Api-Key", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "QRIS Donation Backend API",
	Description:      "Payment notification ingestion, dynamic QRIS generation and donation matching.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
