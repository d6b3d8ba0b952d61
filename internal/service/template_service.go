// internal/service/template_service.go
package service

import (
    "strings"

    "github.com/bulkwave/bulkwave-backend/internal/model"
)

// RenderTemplate substitutes {name}, {phone} and any {tag} placeholders with
// the recipient's personalization fields.
func RenderTemplate(template string, r model.Recipient) string {
    result := strings.ReplaceAll(template, "{name}", valueOr(r.Name))
    result = strings.ReplaceAll(result, "{phone}", valueOr(r.Phone))
    for k, v := range r.Tags {
        result = strings.ReplaceAll(result, "{"+k+"}", valueOr(v))
    }
    return result
}

func valueOr(value string) string {
    if value == "" {
        return "<unknown>"
    }
    return value
}
