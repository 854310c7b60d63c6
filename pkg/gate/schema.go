package gate

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/keon-labs/marketops/pkg/contracts"
)

//go:embed publish_packet.schema.json
var publishPacketSchemaJSON string

const publishPacketSchemaURL = "https://marketops.keon-labs.local/schemas/publish-packet.schema.json"

var publishPacketSchema = compilePublishPacketSchema()

// compilePublishPacketSchema compiles the embedded schema once at package
// init. A malformed embedded schema is a build defect, not a runtime one,
// so it panics rather than surfacing as a gate denial.
func compilePublishPacketSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(publishPacketSchemaURL, strings.NewReader(publishPacketSchemaJSON)); err != nil {
		panic(fmt.Sprintf("gate: embedded publish packet schema failed to load: %v", err))
	}
	compiled, err := c.Compile(publishPacketSchemaURL)
	if err != nil {
		panic(fmt.Sprintf("gate: embedded publish packet schema failed to compile: %v", err))
	}
	return compiled
}

// validatePacketSchema checks packet's wire shape against the embedded
// PublishPacket JSON Schema, ahead of and independent from Validate's
// semantic field checks.
func validatePacketSchema(packet contracts.PublishPacket) error {
	raw, err := json.Marshal(packet)
	if err != nil {
		return fmt.Errorf("gate: marshaling packet for schema validation: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("gate: decoding packet for schema validation: %w", err)
	}
	return publishPacketSchema.Validate(doc)
}
