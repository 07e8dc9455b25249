package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Verve Scheduler API",
        "description": "Weekly instructor priority-block scheduling service",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Solver", "description": "Solve job intake, status, and results"}
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
                    "200": {"description": "Ready"}
                }
            }
        },
        "/solver/run": {
            "post": {
                "tags": ["Solver"],
                "summary": "Submit a scheduling run",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SolveRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Submission failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/solver/status/{jobId}": {
            "get": {
                "tags": ["Solver"],
                "summary": "Solve job status",
                "parameters": [
                    {"name": "jobId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/solver/results/{jobId}": {
            "get": {
                "tags": ["Solver"],
                "summary": "Decoded schedule of a completed job",
                "parameters": [
                    {"name": "jobId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Job not finished", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/solver/results/download/{token}": {
            "get": {
                "tags": ["Solver"],
                "summary": "Download a result artifact by signed token",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics": {
            "get": {
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "SolveRequest": {
            "type": "object",
            "required": ["organization_id", "term_id"],
            "properties": {
                "organization_id": {"type": "integer"},
                "term_id": {"type": "integer"},
                "studio_location_id": {"type": "integer"},
                "solve_mode": {"type": "string", "enum": ["PRIORITY_BLOCKS", "FULL"]},
                "force_run_stage_a": {"type": "boolean"}
            }
        },
        "SolveJobResponse": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"},
                "status": {"type": "string", "enum": ["QUEUED", "PROCESSING", "COMPLETED", "FAILED"]},
                "message": {"type": "string"},
                "submitted_at": {"type": "string", "format": "date-time"}
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
