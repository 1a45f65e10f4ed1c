package bridge

import "encoding/json"

// emptyObjectSchema is the fallback input schema for tools that take no
// structured arguments.
var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// toolSchemas holds the JSON Schema advertised for each tool via
// tools/list. Tools absent from this map get emptyObjectSchema.
var toolSchemas = map[string]json.RawMessage{
	"label_github_issue": json.RawMessage(`{
		"type": "object",
		"properties": {
			"repo_name": {
				"type": "string",
				"description": "Repository in owner/repo form"
			},
			"issue_number": {
				"type": "integer",
				"description": "Issue number to label",
				"minimum": 1
			},
			"dry_run": {
				"type": "boolean",
				"description": "Compute labels without applying them"
			}
		},
		"required": ["repo_name", "issue_number"]
	}`),
	"watch_collect": json.RawMessage(`{
		"type": "object",
		"properties": {
			"sources": {
				"type": "array",
				"items": {
					"type": "string",
					"enum": ["github", "pypi", "npm", "reddit", "hackernews"]
				},
				"description": "Sources to poll; defaults to the configured set"
			},
			"hours": {
				"type": "integer",
				"description": "Lookback window in hours"
			}
		}
	}`),
	"analyse_watch_report": json.RawMessage(`{
		"type": "object",
		"properties": {
			"report": {
				"type": "string",
				"description": "Inline report text to analyse"
			},
			"report_path": {
				"type": "string",
				"description": "Path to a report file inside the workspace"
			}
		}
	}`),
	"curate_digest": json.RawMessage(`{
		"type": "object",
		"properties": {
			"analysis_json": {
				"type": "string",
				"description": "Analysis output to curate into a digest"
			}
		},
		"required": ["analysis_json"]
	}`),
	HealthCheckTool: json.RawMessage(`{
		"type": "object",
		"properties": {}
	}`),
}

func schemaFor(tool string) json.RawMessage {
	if s, ok := toolSchemas[tool]; ok {
		return s
	}
	return emptyObjectSchema
}
