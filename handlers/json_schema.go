package handlers

import "github.com/xeipuuv/gojsonschema"

// ProcessRequestSchemaDefinition validates the body shared by /process and
// /process-task (§6): "same shape as /process".
var ProcessRequestSchemaDefinition string = `{
	"type": "object",
	"properties": {
		"upload_id": {"type": "string"},
		"r2_key": {"type": "string"},
		"file_name": {"type": "string"},
		"user_id": {"type": "string"},
		"data_consent": {"type": "boolean"},
		"detection_mode": {"type": "string", "enum": ["standard", "enhanced"]}
	},
	"additionalProperties": false,
	"required": [
		"upload_id",
		"r2_key",
		"file_name",
		"user_id",
		"data_consent"
	]
}`

var inputSchemas = map[string]string{
	"Process": ProcessRequestSchemaDefinition,
}

func compileJSONSchemas() map[string]*gojsonschema.Schema {
	compiled := make(map[string]*gojsonschema.Schema, len(inputSchemas))
	for name, text := range inputSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(text))
		if err != nil {
			panic(err) // fix schema text
		}
		compiled[name] = schema
	}
	return compiled
}

var inputSchemasCompiled = compileJSONSchemas()
