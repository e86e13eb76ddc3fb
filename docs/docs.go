// Package docs holds the OpenAPI description served at /docs.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "VitalSync"
        },
        "license": {
            "name": "MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/": {
            "get": {
                "produces": ["application/json"],
                "tags": ["meta"],
                "summary": "API root info",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/health": {
            "get": {
                "description": "Returns health status, cache statistics and database connectivity.",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object"}}
                }
            }
        },
        "/auth/{memberID}": {
            "get": {
                "description": "Redirects to the Google consent screen for the member. The state parameter is a single-use nonce valid for ten minutes.",
                "tags": ["auth"],
                "summary": "Start authorization",
                "parameters": [
                    {"type": "string", "description": "Member ID", "name": "memberID", "in": "path", "required": true}
                ],
                "responses": {
                    "302": {"description": "Found"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/auth/google/callback": {
            "get": {
                "description": "Exchanges the authorization code and stores the member's credentials.",
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Authorization callback",
                "parameters": [
                    {"type": "string", "description": "Authorization code", "name": "code", "in": "query", "required": true},
                    {"type": "string", "description": "State nonce from /auth/{memberID}", "name": "state", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/api/health-data": {
            "get": {
                "description": "Returns all member profiles with their latest reading and token status. Credentials are never included.",
                "produces": ["application/json"],
                "tags": ["members"],
                "summary": "List members",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/store.Member"}}}
                }
            }
        },
        "/api/member/{memberID}/latest": {
            "get": {
                "description": "Returns the most recent synced reading. Fields the provider did not report are omitted.",
                "produces": ["application/json"],
                "tags": ["members"],
                "summary": "Latest reading",
                "parameters": [
                    {"type": "string", "description": "Member ID", "name": "memberID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/provider.Reading"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/api/member/{memberID}/auth-status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Authorization status",
                "parameters": [
                    {"type": "string", "description": "Member ID", "name": "memberID", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/api/member/{memberID}/history": {
            "get": {
                "description": "Returns one value per day for the period. Falls back to a synthetic series when the provider is unavailable; the X-Series-Source header tells which.",
                "produces": ["application/json"],
                "tags": ["members"],
                "summary": "Historical series",
                "parameters": [
                    {"type": "string", "description": "Member ID", "name": "memberID", "in": "path", "required": true},
                    {"enum": ["week", "month", "year"], "type": "string", "default": "week", "description": "Period", "name": "period", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/provider.Columns"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/api/member/{memberID}/history.xlsx": {
            "get": {
                "description": "Same series as /history, rendered as an XLSX workbook.",
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "tags": ["members"],
                "summary": "Historical series workbook",
                "parameters": [
                    {"type": "string", "description": "Member ID", "name": "memberID", "in": "path", "required": true},
                    {"enum": ["week", "month", "year"], "type": "string", "default": "week", "description": "Period", "name": "period", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/api/sync": {
            "post": {
                "description": "Fetches the latest reading for every member and dispatches alerts. Returns the pass summary.",
                "produces": ["application/json"],
                "tags": ["operations"],
                "summary": "Run sync pass",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/scheduler.PassResult"}}}
            }
        },
        "/api/alerts/sweep": {
            "post": {
                "description": "Re-evaluates every stored reading against the alert thresholds.",
                "produces": ["application/json"],
                "tags": ["operations"],
                "summary": "Run alert sweep",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/scheduler.SweepResult"}}}
            }
        }
    },
    "definitions": {
        "respond.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "detail": {"type": "string"},
                        "message": {"type": "string"}
                    }
                }
            }
        },
        "provider.Reading": {
            "type": "object",
            "properties": {
                "heart_rate": {"type": "number"},
                "heart_rate_at": {"type": "string"},
                "steps": {"type": "integer"},
                "steps_at": {"type": "string"},
                "sleep_hours": {"type": "number"},
                "blood_pressure_systolic": {"type": "number"},
                "blood_pressure_diastolic": {"type": "number"},
                "blood_pressure_at": {"type": "string"},
                "oxygen_saturation": {"type": "number"},
                "oxygen_saturation_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "provider.Columns": {
            "type": "object",
            "properties": {
                "period": {"type": "string"},
                "source": {"type": "string"},
                "dates": {"type": "array", "items": {"type": "string"}},
                "heartRate": {"type": "array", "items": {"type": "number"}},
                "steps": {"type": "array", "items": {"type": "integer"}},
                "sleep": {"type": "array", "items": {"type": "number"}},
                "bloodPressureSystolic": {"type": "array", "items": {"type": "number"}},
                "bloodPressureDiastolic": {"type": "array", "items": {"type": "number"}},
                "oxygenSaturation": {"type": "array", "items": {"type": "number"}},
                "healthScore": {"type": "integer"}
            }
        },
        "store.Member": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "email": {"type": "string"},
                "latest": {"$ref": "#/definitions/provider.Reading"},
                "last_sync": {"type": "string"},
                "token_status": {"type": "string", "enum": ["unknown", "active", "needs_reauth"]},
                "last_token_check": {"type": "string"}
            }
        },
        "scheduler.AlertCounts": {
            "type": "object",
            "properties": {
                "violations": {"type": "integer"},
                "sent": {"type": "integer"},
                "duplicate": {"type": "integer"},
                "failed": {"type": "integer"}
            }
        },
        "scheduler.PassResult": {
            "type": "object",
            "properties": {
                "started_at": {"type": "string"},
                "members": {"type": "integer"},
                "updated": {"type": "integer"},
                "no_data": {"type": "integer"},
                "needs_reauth": {"type": "integer"},
                "failed": {"type": "integer"},
                "alerts": {"$ref": "#/definitions/scheduler.AlertCounts"},
                "duration": {"type": "integer"},
                "errors": {"type": "array", "items": {"type": "string"}}
            }
        },
        "scheduler.SweepResult": {
            "type": "object",
            "properties": {
                "started_at": {"type": "string"},
                "members": {"type": "integer"},
                "evaluated": {"type": "integer"},
                "alerts": {"$ref": "#/definitions/scheduler.AlertCounts"},
                "duration": {"type": "integer"},
                "errors": {"type": "array", "items": {"type": "string"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:3000",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "VitalSync API",
	Description:      "Family health monitoring: member authorization, latest vitals, historical series and alert passes.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
