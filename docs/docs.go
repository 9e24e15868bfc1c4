// Package docs registers the OpenAPI description served under /swagger.
// Regenerate with `swag init -g cmd/tixfront/main.go`.
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
        "/healthz": {"get": {"responses": {"200": {"description": "OK"}}}},
        "/reservation": {
            "get": {"summary": "Reservation screen", "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}},
            "post": {"summary": "Open an event for reservation", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/reservation/schema": {"get": {"summary": "Seat map SVG of the open event", "produces": ["image/svg+xml"], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/reservation/categories/{cid}/increase": {"post": {"summary": "Add one ticket of a single-price category", "parameters": [{"type": "integer", "name": "cid", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "422": {"description": "Unprocessable Entity"}}}},
        "/reservation/categories/{cid}/decrease": {"post": {"summary": "Remove one ticket of a single-price category", "parameters": [{"type": "integer", "name": "cid", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/reservation/categories/{cid}/draft": {
            "post": {"summary": "Open the tariff editor of a category", "parameters": [{"type": "integer", "name": "cid", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}},
            "put": {"summary": "Write the draft into the cart", "parameters": [{"type": "integer", "name": "cid", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}},
            "delete": {"summary": "Drop every tariff line of a category", "parameters": [{"type": "integer", "name": "cid", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/reservation/categories/{cid}/draft/{tid}/increase": {"post": {"summary": "Add one ticket of a tariff to the draft", "responses": {"200": {"description": "OK"}}}},
        "/reservation/categories/{cid}/draft/{tid}/decrease": {"post": {"summary": "Remove one ticket of a tariff from the draft", "responses": {"200": {"description": "OK"}}}},
        "/reservation/draft": {"delete": {"summary": "Close the tariff editor without touching the cart", "responses": {"200": {"description": "OK"}}}},
        "/reservation/seatmap/events": {"post": {"summary": "Seat map widget event", "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}},
        "/reservation/seatmap/tariff": {
            "post": {"summary": "Choose a tariff for the pending seat", "responses": {"200": {"description": "OK"}}},
            "delete": {"summary": "Dismiss the tariff picker", "responses": {"200": {"description": "OK"}}}
        },
        "/reservation/items/{key}": {"delete": {"summary": "Remove a line from the reservation summary", "responses": {"200": {"description": "OK"}}}},
        "/reservation/commit": {"post": {"summary": "Reserve the cart on the server", "responses": {"200": {"description": "OK"}, "401": {"description": "email required"}, "409": {"description": "Conflict"}, "429": {"description": "rate limited"}}}},
        "/auth": {"post": {"summary": "Authenticate by email and resume a suspended commit", "responses": {"200": {"description": "OK"}, "422": {"description": "Unprocessable Entity"}}}},
        "/checkout": {
            "get": {"summary": "Checkout screen: held cart and countdown", "responses": {"200": {"description": "OK"}}},
            "delete": {"summary": "Leave the checkout screen", "responses": {"204": {"description": "No Content"}}}
        },
        "/checkout/timer": {"get": {"summary": "Countdown state", "responses": {"200": {"description": "OK"}}}},
        "/checkout/items/{seatId}": {"delete": {"summary": "Release one held item", "responses": {"200": {"description": "OK"}}}},
        "/checkout/orders": {"post": {"summary": "Place an order (idempotent)", "responses": {"201": {"description": "Created"}, "409": {"description": "idem in progress"}, "410": {"description": "cart expired"}, "422": {"description": "Unprocessable Entity"}}}},
        "/orders": {"get": {"summary": "Orders of the session's user", "responses": {"200": {"description": "OK"}}}},
        "/orders/{oid}": {"delete": {"summary": "Cancel an unpaid order", "responses": {"204": {"description": "No Content"}}}},
        "/orders/{oid}/tickets": {"get": {"summary": "Tickets of an order", "responses": {"200": {"description": "OK"}}}},
        "/orders/{oid}/refund": {"post": {"summary": "Request a refund", "responses": {"204": {"description": "No Content"}, "422": {"description": "Unprocessable Entity"}}}},
        "/orders/{oid}/receipt": {"get": {"summary": "Local receipt of an order placed by this session", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Tixfront API",
	Description:      "Storefront sessions over the ticketing API: reservation, seat map, checkout and orders.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
