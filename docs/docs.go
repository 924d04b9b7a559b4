// Package docs is generated by swag init from the handler annotations.
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
        "/healthz": {"get": {"tags": ["health"], "summary": "Health check", "responses": {"200": {"description": "OK"}}}},
        "/readyz": {"get": {"tags": ["health"], "summary": "Readiness check", "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}},
        "/metrics": {"get": {"tags": ["health"], "summary": "Prometheus metrics", "produces": ["text/plain"], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/orders": {"get": {"tags": ["orders"], "summary": "List orders", "parameters": [
            {"type": "string", "name": "status", "in": "query"},
            {"type": "integer", "name": "exchange_house_id", "in": "query"},
            {"type": "integer", "name": "operator_id", "in": "query"},
            {"type": "integer", "name": "limit", "in": "query"},
            {"type": "integer", "name": "offset", "in": "query"}
        ], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/orders/{id}": {"get": {"tags": ["orders"], "summary": "Get order", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Order"}}, "404": {"description": "Not Found"}}}},
        "/api/v1/orders/{id}/settle": {"post": {"tags": ["orders"], "summary": "Settle order", "description": "Posts the ledger entries and commission of an order in one transaction. Settling twice is a no-op.", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/settlement.Result"}}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}, "503": {"description": "Service Unavailable"}}}},
        "/api/v1/orders/{id}/complete": {"post": {"tags": ["orders"], "summary": "Complete order", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/orders/{id}/process": {"post": {"tags": ["orders"], "summary": "Start processing order", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/orders/{id}/cancel": {"post": {"tags": ["orders"], "summary": "Cancel order", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}},
        "/api/v1/orders/{id}/fail": {"post": {"tags": ["orders"], "summary": "Fail order", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}},
        "/api/v1/operators/{operator_id}/balances": {"get": {"tags": ["ledger"], "summary": "Operator balances", "parameters": [
            {"type": "integer", "name": "operator_id", "in": "path", "required": true},
            {"type": "integer", "name": "payment_method_id", "in": "query"},
            {"type": "string", "name": "currency", "in": "query"}
        ], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/operators/{operator_id}/movements": {"post": {"tags": ["ledger"], "summary": "Record manual movement", "parameters": [
            {"type": "integer", "name": "operator_id", "in": "path", "required": true},
            {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ledger.ManualMovementInput"}}
        ], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "422": {"description": "Unprocessable Entity"}}}},
        "/api/v1/operators/{operator_id}/ledger-entries": {"get": {"tags": ["ledger"], "summary": "Operator ledger entries", "parameters": [
            {"type": "integer", "name": "operator_id", "in": "path", "required": true},
            {"type": "integer", "name": "payment_method_id", "in": "query"},
            {"type": "string", "name": "currency", "in": "query"},
            {"type": "string", "name": "reference_type", "in": "query"},
            {"type": "string", "name": "reference_id", "in": "query"},
            {"type": "string", "name": "since", "in": "query"},
            {"type": "string", "name": "until", "in": "query"},
            {"type": "integer", "name": "limit", "in": "query"},
            {"type": "integer", "name": "offset", "in": "query"}
        ], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/balances/{id}/verify": {"get": {"tags": ["ledger"], "summary": "Verify balance against its entries", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/commissions": {"get": {"tags": ["commissions"], "summary": "List commissions", "parameters": [
            {"type": "integer", "name": "exchange_house_id", "in": "query"},
            {"type": "integer", "name": "order_id", "in": "query"},
            {"type": "string", "name": "status", "in": "query"},
            {"type": "string", "name": "model", "in": "query"}
        ], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/commissions/{id}": {"get": {"tags": ["commissions"], "summary": "Get commission", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/commissions/{id}/approve": {"post": {"tags": ["commissions"], "summary": "Approve commission", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}},
        "/api/v1/commissions/{id}/reject": {"post": {"tags": ["commissions"], "summary": "Reject commission", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/commissions/{id}/cancel": {"post": {"tags": ["commissions"], "summary": "Cancel commission", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/commissions/{id}/pay": {"post": {"tags": ["commissions"], "summary": "Mark commission paid", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/payment-methods": {"get": {"tags": ["payment-methods"], "summary": "List payment methods", "parameters": [
            {"type": "integer", "name": "exchange_house_id", "in": "query"},
            {"type": "string", "name": "currency", "in": "query"}
        ], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/payment-methods/{id}/default": {"post": {"tags": ["payment-methods"], "summary": "Make payment method the default", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/payment-methods/{id}/activate": {"post": {"tags": ["payment-methods"], "summary": "Activate payment method", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/payment-methods/{id}/deactivate": {"post": {"tags": ["payment-methods"], "summary": "Deactivate payment method", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/system-settings": {"get": {"tags": ["system-settings"], "summary": "List system settings", "responses": {"200": {"description": "OK"}}}},
        "/api/v1/system-settings/switches": {"get": {"tags": ["system-settings"], "summary": "List feature switches", "responses": {"200": {"description": "OK"}}}},
        "/api/v1/system-settings/switches/{name}": {
            "get": {"tags": ["system-settings"], "summary": "Get feature switch", "parameters": [{"type": "string", "name": "name", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["system-settings"], "summary": "Set feature switch", "parameters": [{"type": "string", "name": "name", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        }
    },
    "definitions": {
        "models.Order": {"type": "object", "properties": {
            "id": {"type": "integer"}, "order_number": {"type": "string"}, "exchange_house_id": {"type": "integer"},
            "operator_id": {"type": "integer"}, "currency_pair_id": {"type": "integer"},
            "base_amount": {"type": "string"}, "quote_amount": {"type": "string"},
            "applied_rate": {"type": "string"}, "market_rate": {"type": "string"},
            "status": {"type": "string"}, "failure_reason": {"type": "string"}
        }},
        "settlement.Result": {"type": "object", "properties": {
            "order_id": {"type": "integer"}, "already_settled": {"type": "boolean"}, "attempts": {"type": "integer"}
        }},
        "ledger.ManualMovementInput": {"type": "object", "properties": {
            "payment_method_id": {"type": "integer"}, "currency": {"type": "string"},
            "type": {"type": "string", "enum": ["deposit", "withdrawal", "adjustment"]},
            "amount": {"type": "string"}, "description": {"type": "string"}, "reference_id": {"type": "string"}
        }}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Kuberafi Settlement API",
	Description:      "Order settlement, operator cash ledger and commission workflow.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
