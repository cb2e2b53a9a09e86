package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Self and Parents Enrolment API",
        "description": "Course enrolment for students and their parents",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Instances", "description": "Enrolment instance configuration"},
        {"name": "Enrolments", "description": "Enrolment form surface"}
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
                    "503": {"description": "Database unreachable"}
                }
            }
        },
        "/instances/defaults": {
            "get": {
                "tags": ["Instances"],
                "summary": "New-instance defaults from site settings",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/instances": {
            "post": {
                "tags": ["Instances"],
                "summary": "Attach an enrolment instance to a course",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateInstanceRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/instances/{id}": {
            "get": {
                "tags": ["Instances"],
                "summary": "Get one enrolment instance",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/instances/{id}/eligibility": {
            "get": {
                "tags": ["Enrolments"],
                "summary": "Check whether the acting user may enrol",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "checkExisting", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/instances/{id}/enrolments": {
            "post": {
                "tags": ["Enrolments"],
                "summary": "Submit an enrolment form",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitEnrolmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/instances/{id}/child-actions": {
            "get": {
                "tags": ["Enrolments"],
                "summary": "Navigation links for the acting parent",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/instances/{id}/answers": {
            "get": {
                "tags": ["Enrolments"],
                "summary": "Stored custom-question answers",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/instances/{id}/unenrol-child": {
            "post": {
                "tags": ["Enrolments"],
                "summary": "Unenrol one of the acting parent's children",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UnenrolChildRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/instances/{id}/roster": {
            "get": {
                "tags": ["Enrolments"],
                "summary": "Export the active roster",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Rendered document"}
                }
            }
        },
        "/courses/{courseId}/enrol-icons": {
            "get": {
                "tags": ["Instances"],
                "summary": "Enrolment icons for a course listing",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateInstanceRequest": {
            "type": "object",
            "properties": {
                "course_id": {"type": "integer"},
                "name": {"type": "string"},
                "enabled": {"type": "boolean"},
                "password": {"type": "string"},
                "group_key_allowed": {"type": "boolean"},
                "role_id": {"type": "integer"},
                "enrol_period": {"type": "integer"},
                "enrol_start_date": {"type": "integer"},
                "enrol_end_date": {"type": "integer"},
                "inactivity_threshold": {"type": "integer"},
                "max_enrolled": {"type": "integer"},
                "new_enrols_allowed": {"type": "boolean"},
                "cohort_id": {"type": "integer"},
                "parents_can_enrol": {"type": "boolean"},
                "parents_can_unenrol": {"type": "boolean"},
                "parent_role_id": {"type": "integer"},
                "parents_counted_in_max": {"type": "boolean"},
                "child_question": {"type": "string"},
                "welcome_message": {"type": "string"},
                "send_welcome": {"type": "boolean"}
            },
            "required": ["course_id"]
        },
        "SubmitEnrolmentRequest": {
            "type": "object",
            "properties": {
                "enrol_key": {"type": "string"},
                "enrol_children": {"type": "boolean"},
                "child_user_ids": {"type": "array", "items": {"type": "integer"}},
                "child_answers": {"type": "object"}
            }
        },
        "UnenrolChildRequest": {
            "type": "object",
            "properties": {
                "child_user_id": {"type": "integer"},
                "confirmed": {"type": "boolean"},
                "confirm_token": {"type": "string"}
            },
            "required": ["child_user_id"]
        },
        "Decision": {
            "type": "object",
            "properties": {
                "allowed": {"type": "boolean"},
                "reason": {"type": "string"},
                "message": {"type": "string"}
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
