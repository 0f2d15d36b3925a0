package api

import (
	"clouddb/internal/core"
	"clouddb/internal/service"
	"net/http"
)

// DocHandler describes the query API for the database behind an API key.
type DocHandler struct {
	gateway *service.Gateway
}

func NewDocHandler(gateway *service.Gateway) *DocHandler {
	return &DocHandler{gateway: gateway}
}

func (h *DocHandler) ServeSwaggerUI(w http.ResponseWriter, r *http.Request) {
	// Simple HTML to load Swagger UI; the key is sent as X-API-Key through
	// the Authorize button.
	html := `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>CloudDB API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
        const key = new URLSearchParams(window.location.search).get('key') || '';
        window.ui = SwaggerUIBundle({
            url: '/api/v1/openapi.json',
            dom_id: '#swagger-ui',
            requestInterceptor: (req) => { if (key) req.headers['X-API-Key'] = key; return req; },
        });
    };
</script>
</body>
</html>`
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(html))
}

// GetOpenAPISpec builds an OpenAPI document with one row schema per table of
// the key's database.
func (h *DocHandler) GetOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	db, err := h.gateway.Describe(r.Context(), r.Header.Get("X-API-Key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, openAPIFor(db))
}

func openAPIFor(db *core.Database) map[string]interface{} {
	schemas := make(map[string]interface{})
	tableNames := make([]string, 0, len(db.Tables))
	rowRefs := make([]interface{}, 0, len(db.Tables))

	for _, t := range db.Tables {
		name := "row-" + core.Slugify(t.Name)
		properties := make(map[string]interface{})
		var required []string
		for _, c := range t.Columns {
			prop := columnSchema(c.DataType)
			if c.IsNullable {
				prop["nullable"] = true
			}
			if c.DefaultValue != nil {
				prop["default"] = *c.DefaultValue
			}
			if !c.IsNullable && c.DefaultValue == nil {
				required = append(required, c.Name)
			}
			properties[c.Name] = prop
		}
		schema := map[string]interface{}{
			"type":                 "object",
			"description":          "Row data of table " + t.Name,
			"properties":           properties,
			"additionalProperties": true,
		}
		if len(required) > 0 {
			schema["required"] = required
		}
		schemas[name] = schema
		tableNames = append(tableNames, t.Name)
		rowRefs = append(rowRefs, map[string]string{"$ref": "#/components/schemas/" + name})
	}

	tableProp := map[string]interface{}{"type": "string"}
	if len(tableNames) > 0 {
		tableProp["enum"] = tableNames
	}
	rowData := map[string]interface{}{"type": "object"}
	if len(rowRefs) > 0 {
		rowData = map[string]interface{}{"oneOf": rowRefs}
	}

	operation := map[string]interface{}{
		"summary":     "Run a select, insert, update or delete against " + db.Name,
		"description": db.Description,
		"requestBody": map[string]interface{}{
			"required": true,
			"content": map[string]interface{}{
				"application/json": map[string]interface{}{
					"schema": map[string]interface{}{
						"type":     "object",
						"required": []string{"action", "table"},
						"properties": map[string]interface{}{
							"action": map[string]interface{}{
								"type": "string",
								"enum": []string{service.ActionSelect, service.ActionInsert, service.ActionUpdate, service.ActionDelete},
							},
							"table":   tableProp,
							"data":    rowData,
							"filters": map[string]interface{}{"type": "object", "description": "Exact-match filters"},
							"row_id":  map[string]interface{}{"type": "string", "format": "uuid"},
						},
					},
				},
			},
		},
		"responses": map[string]interface{}{
			"200": map[string]interface{}{"description": "Successful execution"},
			"400": map[string]interface{}{"description": "Bad Request"},
			"401": map[string]interface{}{"description": "Invalid or inactive API key"},
			"404": map[string]interface{}{"description": "Table or row not found"},
			"429": map[string]interface{}{"description": "Too Many Requests"},
		},
	}

	schemas["row"] = map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id":         map[string]string{"type": "string", "format": "uuid"},
			"data":       rowData,
			"created_at": map[string]string{"type": "string", "format": "date-time"},
			"updated_at": map[string]string{"type": "string", "format": "date-time"},
		},
	}

	return map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "CloudDB API: " + db.Name,
			"version":     "1.0.0",
			"description": "Query API generated from the database's tables.",
		},
		"paths": map[string]interface{}{
			"/api/v1/query": map[string]interface{}{"post": operation},
		},
		"components": map[string]interface{}{
			"schemas": schemas,
			"securitySchemes": map[string]interface{}{
				"ApiKeyAuth": map[string]interface{}{
					"type": "apiKey",
					"in":   "header",
					"name": "X-API-Key",
				},
			},
		},
		"security": []map[string]interface{}{
			{
				"ApiKeyAuth": []string{},
			},
		},
	}
}

func columnSchema(t core.DataType) map[string]interface{} {
	switch t {
	case core.TypeInteger:
		return map[string]interface{}{"type": "integer"}
	case core.TypeFloat:
		return map[string]interface{}{"type": "number"}
	case core.TypeBoolean:
		return map[string]interface{}{"type": "boolean"}
	case core.TypeTimestamp:
		return map[string]interface{}{"type": "string", "format": "date-time"}
	case core.TypeUUID:
		return map[string]interface{}{"type": "string", "format": "uuid"}
	case core.TypeJSONB:
		return map[string]interface{}{}
	}
	return map[string]interface{}{"type": "string"}
}
