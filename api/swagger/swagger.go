package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Lesson Scheduler API",
        "description": "Lesson scheduling core: conflict-free booking, role-scoped reads and the lesson audit trail",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "Bearer": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"Bearer": []}],
    "tags": [
        {"name": "Lessons", "description": "Lesson lifecycle and role-scoped reads"},
        {"name": "Admin", "description": "Unrestricted listings, statistics and exports"}
    ],
    "paths": {
        "/lessons": {
            "get": {
                "tags": ["Lessons"],
                "summary": "List visible lessons",
                "parameters": [
                    {"name": "teacher_id", "in": "query", "type": "string"},
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "subject_id", "in": "query", "type": "string"},
                    {"name": "date_from", "in": "query", "type": "string", "format": "date"},
                    {"name": "date_to", "in": "query", "type": "string", "format": "date"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["pending", "confirmed", "completed", "cancelled"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"},
                    {"name": "sort_by", "in": "query", "type": "string"},
                    {"name": "sort_order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Lessons"],
                "summary": "Schedule a lesson",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateLessonRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Caller is not the lesson's teacher", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Teacher or student already booked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Past date or no active enrollment", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Schedule busy, retry", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lessons/{id}": {
            "get": {
                "tags": ["Lessons"],
                "summary": "Get a lesson",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Lessons"],
                "summary": "Reschedule or edit a lesson",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateLessonRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict, already started or terminal", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lessons/{id}/cancel": {
            "post": {
                "tags": ["Lessons"],
                "summary": "Cancel a lesson",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Inside the cancellation window", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lessons/{id}/history": {
            "get": {
                "tags": ["Lessons"],
                "summary": "Lesson change history, newest first",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/lessons": {
            "get": {
                "tags": ["Admin"],
                "summary": "List all lessons",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/lessons/stats": {
            "get": {
                "tags": ["Admin"],
                "summary": "Lesson counts per status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/lessons/export": {
            "get": {
                "tags": ["Admin"],
                "summary": "Export lessons",
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "xlsx"]}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        }
    },
    "definitions": {
        "CreateLessonRequest": {
            "type": "object",
            "required": ["teacherId", "studentId", "subjectId", "date", "startTime", "endTime"],
            "properties": {
                "teacherId": {"type": "string"},
                "studentId": {"type": "string"},
                "subjectId": {"type": "string"},
                "date": {"type": "string", "format": "date"},
                "startTime": {"type": "string", "example": "10:00"},
                "endTime": {"type": "string", "example": "11:00"},
                "description": {"type": "string"},
                "telemostLink": {"type": "string", "format": "uri"}
            }
        },
        "UpdateLessonRequest": {
            "type": "object",
            "properties": {
                "date": {"type": "string", "format": "date"},
                "startTime": {"type": "string"},
                "endTime": {"type": "string"},
                "description": {"type": "string"},
                "telemostLink": {"type": "string", "format": "uri"}
            }
        },
        "Lesson": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "teacher_id": {"type": "string"},
                "student_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "date": {"type": "string", "format": "date"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "confirmed", "completed", "cancelled"]},
                "description": {"type": "string"},
                "telemost_link": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
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
