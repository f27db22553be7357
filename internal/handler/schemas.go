package handler

import "github.com/bizpermit/permitdesk/internal/middleware"

// Request body schemas. Length and blank checks on descriptive fields
// stay in the service so every caller gets the same field names back.
const (
	submitApplicationSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["owner_name", "business_name", "business_type", "address"],
	"properties": {
		"id": {"type": "string"},
		"owner_name": {"type": "string"},
		"business_name": {"type": "string"},
		"business_type": {"type": "string"},
		"address": {"type": "string"},
		"attachments": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		}
	}
}`

	updateFieldsSchema = `{
	"type": "object",
	"additionalProperties": false,
	"minProperties": 1,
	"properties": {
		"owner_name": {"type": "string"},
		"business_name": {"type": "string"},
		"business_type": {"type": "string"},
		"address": {"type": "string"}
	}
}`

	reviewSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["status"],
	"properties": {
		"status": {"type": "string", "enum": ["Pending", "Approved", "Rejected"]}
	}
}`

	attachSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["reference"],
	"properties": {
		"reference": {"type": "string"}
	}
}`

	credentialsSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["email", "password"],
	"properties": {
		"email": {"type": "string"},
		"password": {"type": "string"}
	}
}`

	createKeySchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"name": {"type": "string", "maxLength": 100},
		"scopes": {
			"type": "array",
			"uniqueItems": true,
			"items": {"type": "string", "enum": ["read", "write"]}
		}
	}
}`
)

// Schemas holds the compiled request body schemas used by the router.
type Schemas struct {
	SubmitApplication *middleware.BodySchema
	UpdateFields      *middleware.BodySchema
	Review            *middleware.BodySchema
	Attach            *middleware.BodySchema
	Credentials       *middleware.BodySchema
	CreateKey         *middleware.BodySchema
}

// CompileSchemas compiles every request body schema. It panics on a
// malformed schema, which can only be a programming error.
func CompileSchemas() *Schemas {
	return &Schemas{
		SubmitApplication: middleware.MustCompileSchema("submit_application", submitApplicationSchema),
		UpdateFields:      middleware.MustCompileSchema("update_fields", updateFieldsSchema),
		Review:            middleware.MustCompileSchema("review", reviewSchema),
		Attach:            middleware.MustCompileSchema("attach", attachSchema),
		Credentials:       middleware.MustCompileSchema("credentials", credentialsSchema),
		CreateKey:         middleware.MustCompileSchema("create_key", createKeySchema),
	}
}
