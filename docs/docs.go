package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "AllocAI API",
    "description": "Employees, projects, allocations and AI resource insights",
    "version": "1.0"
  },
  "basePath": "/",
  "securityDefinitions": {
    "BearerAuth": {
      "type": "apiKey",
      "name": "Authorization",
      "in": "header"
    }
  },
  "tags": [
    {"name": "auth"},
    {"name": "employees"},
    {"name": "projects"},
    {"name": "allocations"},
    {"name": "ai"},
    {"name": "webhooks"}
  ],
  "paths": {}
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Title:            "AllocAI API",
	Description:      "Employees, projects, allocations and AI resource insights",
	InfoInstanceName: swag.Name,
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
