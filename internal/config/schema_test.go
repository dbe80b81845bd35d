package config

import (
	"encoding/json"
	"testing"
)

func TestSchemaProducesValidJSON(t *testing.T) {
	data, err := Schema()
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	if doc["title"] != "crawlcore Configuration" {
		t.Errorf("expected title, got %v", doc["title"])
	}
}
