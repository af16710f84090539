package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Fulfillment API",
        "description": "Printing-order fulfillment lifecycle and reconciliation engine",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Orders", "description": "Order intake and lifecycle"},
        {"name": "Progress", "description": "Three-tier progress aggregation"},
        {"name": "Audit", "description": "Reconciliation reports and trail"},
        {"name": "Events", "description": "Live change propagation"}
    ],
    "paths": {
        "/orders": {
            "get": {
                "tags": ["Orders"],
                "summary": "List orders",
                "parameters": [
                    {"name": "school_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "description": "Comma-separated status filter"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Orders"],
                "summary": "Submit a new printing order with its roster",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateOrderRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/orders/{id}": {
            "get": {
                "tags": ["Orders"],
                "summary": "Get order detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/orders/{id}/transitions": {
            "post": {
                "tags": ["Orders"],
                "summary": "Apply a lifecycle transition",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TransitionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid source state"}
                }
            }
        },
        "/orders/{id}/schedule": {
            "post": {
                "tags": ["Orders"],
                "summary": "Schedule an order and move it to the queue",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleOrderRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Order not schedulable"}
                }
            }
        },
        "/orders/{id}/schedule/estimate": {
            "get": {
                "tags": ["Orders"],
                "summary": "Preview the processing duration estimate",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/orders/{id}/progress": {
            "get": {
                "tags": ["Progress"],
                "summary": "Get the three-tier progress view",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "refresh", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/orders/{id}/students/{studentId}/printing": {
            "patch": {
                "tags": ["Orders"],
                "summary": "Record printed garment counts for a student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordPrintingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Garments not fully printed"}
                }
            }
        },
        "/orders/{id}/audit": {
            "post": {
                "tags": ["Audit"],
                "summary": "Open or resume the audit report for an order",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/orders/{id}/events": {
            "get": {
                "tags": ["Events"],
                "summary": "Stream change events for an order (SSE)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Event stream"}
                }
            }
        },
        "/audit-reports/{id}": {
            "get": {
                "tags": ["Audit"],
                "summary": "Get an audit report with snapshot and trail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/audit-reports/{id}/order": {
            "patch": {
                "tags": ["Audit"],
                "summary": "Apply audited corrections to order totals",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EditOrderTotalsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Report sealed"}
                }
            }
        },
        "/audit-reports/{id}/classes/{classId}": {
            "patch": {
                "tags": ["Audit"],
                "summary": "Apply audited corrections to a class",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EditClassRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Report sealed"}
                }
            }
        },
        "/audit-reports/{id}/students/{studentId}": {
            "patch": {
                "tags": ["Audit"],
                "summary": "Save a student's audited garment counts",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveStudentAuditRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Report sealed"}
                }
            }
        },
        "/audit-reports/{id}/seal": {
            "post": {
                "tags": ["Audit"],
                "summary": "Seal an audit report",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateOrderRequest": {
            "type": "object",
            "required": ["school_id", "school_name", "classes"],
            "properties": {
                "school_id": {"type": "string"},
                "school_name": {"type": "string"},
                "classes": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/CreateClassRequest"}
                }
            }
        },
        "CreateClassRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "students": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/CreateStudentRequest"}
                }
            }
        },
        "CreateStudentRequest": {
            "type": "object",
            "required": ["full_name"],
            "properties": {
                "full_name": {"type": "string"},
                "light_garment_count": {"type": "integer"},
                "dark_garment_count": {"type": "integer"}
            }
        },
        "TransitionRequest": {
            "type": "object",
            "required": ["action"],
            "properties": {
                "action": {"type": "string", "enum": ["confirm", "pickup", "start", "package", "deliver", "complete", "abort"]}
            }
        },
        "ScheduleOrderRequest": {
            "type": "object",
            "required": ["scheduled_date"],
            "properties": {
                "scheduled_date": {"type": "string", "format": "date-time"}
            }
        },
        "RecordPrintingRequest": {
            "type": "object",
            "properties": {
                "printed_light_garment_count": {"type": "integer"},
                "printed_dark_garment_count": {"type": "integer"},
                "mark_served": {"type": "boolean"}
            }
        },
        "EditOrderTotalsRequest": {
            "type": "object",
            "properties": {
                "total_students": {"type": "integer"},
                "total_garments": {"type": "integer"},
                "total_dark_garments": {"type": "integer"},
                "total_light_garments": {"type": "integer"}
            }
        },
        "EditClassRequest": {
            "type": "object",
            "properties": {
                "total_students_to_serve": {"type": "integer"},
                "is_attended": {"type": "boolean"}
            }
        },
        "SaveStudentAuditRequest": {
            "type": "object",
            "properties": {
                "total_light_garment_count": {"type": "integer"},
                "total_dark_garment_count": {"type": "integer"}
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
