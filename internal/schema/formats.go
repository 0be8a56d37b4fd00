// Package schema defines custom JSON Schema formats for scene documents.
package schema

import (
	"regexp"
	"sync"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

var nodeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9:._-]+$`)

// nodeIDFormatChecker implements gojsonschema.FormatChecker for node_id.
type nodeIDFormatChecker struct{}

// IsFormat accepts UUIDs and semantic ids such as "npc:wolf-5".
func (c nodeIDFormatChecker) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	if !ok || s == "" {
		return false
	}
	if _, err := uuid.Parse(s); err == nil {
		return true
	}
	return nodeIDPattern.MatchString(s)
}

var registerOnce sync.Once

// RegisterCustomFormats registers the node_id format. Safe to call repeatedly.
func RegisterCustomFormats() {
	registerOnce.Do(func() {
		gojsonschema.FormatCheckers.Add("node_id", nodeIDFormatChecker{})
	})
}
