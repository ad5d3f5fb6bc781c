// Package docs holds the OpenAPI description served under /swagger.
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
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/auth/operators/register": {"post": {"tags": ["auth"], "summary": "Register an operator account", "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}}},
        "/auth/operators/login": {"post": {"tags": ["auth"], "summary": "Operator login", "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}},
        "/auth/drivers/login": {"post": {"tags": ["auth"], "summary": "Driver login with a booking confirmation code", "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}},
        "/v1/sessions": {"post": {"security": [{"BearerAuth": []}], "tags": ["sessions"], "summary": "Start a kiosk session for a booking", "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}}},
        "/v1/sessions/{booking_id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["sessions"], "summary": "Get session state", "parameters": [{"type": "string", "name": "booking_id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["sessions"], "summary": "Stop a session", "parameters": [{"type": "string", "name": "booking_id", "in": "path", "required": true}], "responses": {"204": {"description": "No Content"}}}
        },
        "/v1/sessions/{booking_id}/resume": {"post": {"security": [{"BearerAuth": []}], "tags": ["sessions"], "summary": "Resume a session after a source error", "parameters": [{"type": "string", "name": "booking_id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/v1/sessions/{booking_id}/positions": {"post": {"security": [{"BearerAuth": []}], "tags": ["sessions"], "summary": "Push a position sample", "parameters": [{"type": "string", "name": "booking_id", "in": "path", "required": true}], "responses": {"202": {"description": "Accepted"}, "422": {"description": "Unprocessable Entity"}}}},
        "/v1/sessions/{booking_id}/positions/batch": {"post": {"security": [{"BearerAuth": []}], "tags": ["sessions"], "summary": "Push a batch of position samples", "parameters": [{"type": "string", "name": "booking_id", "in": "path", "required": true}], "responses": {"202": {"description": "Accepted"}, "413": {"description": "Request Entity Too Large"}}}},
        "/v1/sessions/{booking_id}/position-errors": {"post": {"security": [{"BearerAuth": []}], "tags": ["sessions"], "summary": "Report a position source error", "parameters": [{"type": "string", "name": "booking_id", "in": "path", "required": true}], "responses": {"202": {"description": "Accepted"}}}},
        "/v1/sessions/{booking_id}/stream": {"get": {"security": [{"BearerAuth": []}], "tags": ["sessions"], "summary": "Stream geofence events over a websocket", "parameters": [{"type": "string", "name": "booking_id", "in": "path", "required": true}], "responses": {"101": {"description": "Switching Protocols"}}}},
        "/v1/bookings": {"post": {"security": [{"BearerAuth": []}], "tags": ["bookings"], "summary": "Create a booking", "responses": {"201": {"description": "Created"}, "403": {"description": "Forbidden"}}}},
        "/v1/bookings/{booking_id}": {"get": {"security": [{"BearerAuth": []}], "tags": ["bookings"], "summary": "Get a booking", "parameters": [{"type": "string", "name": "booking_id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/v1/bookings/{booking_id}/check-in": {"post": {"security": [{"BearerAuth": []}], "tags": ["bookings"], "summary": "Check in", "parameters": [{"type": "string", "name": "booking_id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}, "422": {"description": "Unprocessable Entity"}}}},
        "/v1/bookings/{booking_id}/arrive-dock": {"post": {"security": [{"BearerAuth": []}], "tags": ["bookings"], "summary": "Mark arrival at the dock", "parameters": [{"type": "string", "name": "booking_id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}},
        "/v1/bookings/{booking_id}/start-loading": {"post": {"security": [{"BearerAuth": []}], "tags": ["bookings"], "summary": "Start loading", "parameters": [{"type": "string", "name": "booking_id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}},
        "/v1/bookings/{booking_id}/complete": {"post": {"security": [{"BearerAuth": []}], "tags": ["bookings"], "summary": "Complete with a signature", "parameters": [{"type": "string", "name": "booking_id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}, "422": {"description": "Unprocessable Entity"}}}},
        "/v1/bookings/{booking_id}/cancel": {"post": {"security": [{"BearerAuth": []}], "tags": ["bookings"], "summary": "Cancel a booking", "parameters": [{"type": "string", "name": "booking_id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}},
        "/v1/bookings/{booking_id}/help": {"post": {"security": [{"BearerAuth": []}], "tags": ["bookings"], "summary": "Request help from an operator", "parameters": [{"type": "string", "name": "booking_id", "in": "path", "required": true}], "responses": {"201": {"description": "Created"}}}},
        "/v1/bookings/{booking_id}/geofence-events": {"get": {"security": [{"BearerAuth": []}], "tags": ["bookings"], "summary": "List geofence events", "parameters": [{"type": "string", "name": "booking_id", "in": "path", "required": true}, {"type": "integer", "name": "limit", "in": "query"}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}},
        "/health": {"get": {"tags": ["health"], "summary": "Liveness check", "responses": {"200": {"description": "OK"}}}},
        "/health/ready": {"get": {"tags": ["health"], "summary": "Readiness check", "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Dock Kiosk API",
	Description:      "Arrival detection and dock check-in for carrier bookings.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
