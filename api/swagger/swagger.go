package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Course Registration API",
        "description": "Schedule recommendation, draft validation and registration service.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Recommendations", "description": "Greedy schedule construction"},
        {"name": "Drafts", "description": "Candidate schedule editing and validation"},
        {"name": "Schedules", "description": "Finalized schedules"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/recommendations/schedule": {
            "post": {
                "tags": ["Recommendations"],
                "summary": "Build a schedule recommendation",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/RecommendScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid options"},
                    "502": {"description": "Catalog unavailable"}
                }
            }
        },
        "/drafts": {
            "get": {
                "tags": ["Drafts"],
                "summary": "List drafts",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Drafts"],
                "summary": "Create a draft",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateDraftRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/drafts/{id}": {
            "get": {
                "tags": ["Drafts"],
                "summary": "Get a draft with its entries",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found"}
                }
            },
            "delete": {
                "tags": ["Drafts"],
                "summary": "Delete a draft",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/drafts/{id}/groups": {
            "post": {
                "tags": ["Drafts"],
                "summary": "Add a course group to a draft",
                "description": "Validates slot conflicts, the credit ceiling and prerequisites, in that order.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddGroupRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Credit limit exceeded or prerequisites unmet"},
                    "409": {"description": "Schedule conflict"}
                }
            }
        },
        "/drafts/{id}/groups/{entryId}": {
            "delete": {
                "tags": ["Drafts"],
                "summary": "Remove a meeting from a draft",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "entryId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/drafts/{id}/apply": {
            "post": {
                "tags": ["Drafts"],
                "summary": "Apply a draft into a finalized schedule",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/drafts/{id}/export": {
            "get": {
                "tags": ["Drafts"],
                "summary": "Export a draft timetable",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/schedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "List finalized schedules",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Get a finalized schedule",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found"}
                }
            }
        }
    },
    "definitions": {
        "RecommendScheduleRequest": {
            "type": "object",
            "properties": {
                "max_credits": {"type": "integer", "minimum": 1, "maximum": 30},
                "include_electives": {"type": "boolean"}
            }
        },
        "CreateDraftRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "term": {"type": "integer"}
            },
            "required": ["name"]
        },
        "SlotPayload": {
            "type": "object",
            "properties": {
                "day": {"type": "integer", "minimum": 1, "maximum": 7},
                "start": {"type": "string", "example": "08:00"},
                "end": {"type": "string", "example": "10:00"},
                "room": {"type": "string"}
            },
            "required": ["day", "start", "end"]
        },
        "AddGroupRequest": {
            "type": "object",
            "properties": {
                "course_code": {"type": "string"},
                "course_name": {"type": "string"},
                "group_name": {"type": "string"},
                "credits": {"type": "integer"},
                "prerequisites": {
                    "type": "array",
                    "items": {"type": "string"}
                },
                "schedule": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/SlotPayload"}
                }
            },
            "required": ["course_code", "schedule"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
