// Package validator checks ingestion requests and reports every failing
// field at once.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/ingestion"
)

const (
	maxNameLength  = 255
	maxTitleLength = 1024
	maxBodyLength  = 1 << 20
)

// ValidationError maps field names to what is wrong with them.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		errs["name"] = "name is required"
	case len(name) > maxNameLength:
		errs["name"] = fmt.Sprintf("name must be at most %d characters", maxNameLength)
	}
	if len(req.Title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	body := strings.TrimSpace(req.Body)
	switch {
	case body == "" && strings.TrimSpace(req.Title) == "":
		errs["body"] = "body or title is required"
	case len(body) > maxBodyLength:
		errs["body"] = fmt.Sprintf("body must be at most %d characters", maxBodyLength)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
