package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Timetable Engine API",
        "description": "Constraint-based school timetabling service",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Timetables", "description": "Solve requests, proposals and exports"},
        {"name": "Runs", "description": "Persisted, versioned timetables"},
        {"name": "Observability", "description": "Health and metrics"}
    ],
    "paths": {
        "/timetables/generate": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Generate a timetable proposal",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "Solved inline", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Enqueued (async=true)", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Solve queue full", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Get proposal state",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown or expired proposal", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/violations": {
            "get": {
                "tags": ["Timetables"],
                "summary": "List unsatisfied constraints for a completed proposal",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/save": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Persist a completed proposal as a versioned run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/SaveTimetableRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Persistence disabled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Proposal has unplaced activities", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/export": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Render a completed proposal to a downloadable file",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "text"]}
                ],
                "responses": {
                    "200": {"description": "Signed download URL", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Download an exported timetable file",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File contents"},
                    "401": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/runs": {
            "get": {
                "tags": ["Runs"],
                "summary": "List persisted runs",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["DRAFT", "PUBLISHED", "ARCHIVED"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/runs/{id}": {
            "get": {
                "tags": ["Runs"],
                "summary": "Get one run with its slots",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Run not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Runs"],
                "summary": "Delete a draft run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Run is not a draft", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/runs/{id}/publish": {
            "post": {
                "tags": ["Runs"],
                "summary": "Publish a draft run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Run is not a draft", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/status": {
            "get": {
                "tags": ["Observability"],
                "summary": "Aggregated runtime metrics snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "PeriodRef": {
            "type": "object",
            "properties": {
                "day": {"type": "integer"},
                "hour": {"type": "integer"}
            }
        },
        "TeacherInput": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "notAvailable": {"type": "array", "items": {"$ref": "#/definitions/PeriodRef"}},
                "maxHoursPerDay": {"type": "integer"},
                "maxConsecutiveHours": {"type": "integer"},
                "maxDaysPerWeek": {"type": "integer"},
                "minGapsPerDay": {"type": "integer"},
                "maxSpanPerDay": {"type": "integer"}
            },
            "required": ["id", "name"]
        },
        "StudentSetInput": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "notAvailable": {"type": "array", "items": {"$ref": "#/definitions/PeriodRef"}},
                "maxHoursPerDay": {"type": "integer"}
            },
            "required": ["id", "name"]
        },
        "RoomInput": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "capacity": {"type": "integer"},
                "notAvailable": {"type": "array", "items": {"$ref": "#/definitions/PeriodRef"}}
            },
            "required": ["id", "name"]
        },
        "ActivityInput": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "subjectId": {"type": "string"},
                "teacherIds": {"type": "array", "items": {"type": "string"}},
                "studentSetIds": {"type": "array", "items": {"type": "string"}},
                "tagIds": {"type": "array", "items": {"type": "string"}},
                "totalDuration": {"type": "integer"},
                "preferredStartingTime": {"$ref": "#/definitions/PeriodRef"},
                "preferredStartingTimes": {"type": "array", "items": {"$ref": "#/definitions/PeriodRef"}},
                "preferredTimeSlots": {"type": "array", "items": {"$ref": "#/definitions/PeriodRef"}},
                "preferredRooms": {"type": "array", "items": {"type": "string"}},
                "preferenceWeight": {"type": "number"}
            },
            "required": ["id", "name", "totalDuration"]
        },
        "ConstraintInput": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "weight": {"type": "number"},
                "active": {"type": "boolean"},
                "teacherId": {"type": "string"},
                "studentSetId": {"type": "string"},
                "roomId": {"type": "string"},
                "activityId": {"type": "string"},
                "activityIds": {"type": "array", "items": {"type": "string"}},
                "limit": {"type": "integer"},
                "minGaps": {"type": "integer"}
            },
            "required": ["type"]
        },
        "AnnealingInput": {
            "type": "object",
            "properties": {
                "maxIterations": {"type": "integer"},
                "initialTemperature": {"type": "number"},
                "coolingRate": {"type": "number"}
            }
        },
        "GenerateTimetableRequest": {
            "type": "object",
            "properties": {
                "label": {"type": "string"},
                "days": {"type": "integer"},
                "periodsPerDay": {"type": "integer"},
                "seed": {"type": "integer"},
                "async": {"type": "boolean"},
                "teachers": {"type": "array", "items": {"$ref": "#/definitions/TeacherInput"}},
                "studentSets": {"type": "array", "items": {"$ref": "#/definitions/StudentSetInput"}},
                "subjects": {"type": "array", "items": {"type": "object"}},
                "tags": {"type": "array", "items": {"type": "object"}},
                "rooms": {"type": "array", "items": {"$ref": "#/definitions/RoomInput"}},
                "activities": {"type": "array", "items": {"$ref": "#/definitions/ActivityInput"}},
                "constraints": {"type": "array", "items": {"$ref": "#/definitions/ConstraintInput"}},
                "annealing": {"$ref": "#/definitions/AnnealingInput"}
            },
            "required": ["days", "periodsPerDay", "rooms", "activities"]
        },
        "SaveTimetableRequest": {
            "type": "object",
            "properties": {
                "label": {"type": "string"},
                "force": {"type": "boolean"}
            }
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
                "status": {"type": "integer"}
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
