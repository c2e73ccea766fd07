package quill

import "context"

// schemaGeneratorStage emits the JSON-LD object for the artifact. Like the
// editor it degrades instead of failing: a run that cannot produce a valid
// schema completes with an empty schema and a warning.
type schemaGeneratorStage struct{}

func (s *schemaGeneratorStage) ID() string { return StageSchemaGenerator }

func (s *schemaGeneratorStage) Validate(c *Context) error {
	_, err := c.Revision()
	return err
}

func (s *schemaGeneratorStage) Execute(ctx context.Context, exec *Execution) (Payload, error) {
	revision, err := exec.Context.Revision()
	if err != nil {
		return nil, err
	}

	schema, err := s.generate(ctx, exec, revision)
	if err != nil {
		if !degradable(err) {
			return nil, err
		}
		exec.Warnf("schema generation failed, artifact will carry no schema: %v", err)
		return StructuredData{Schema: map[string]any{}}, nil
	}
	return StructuredData{Schema: schema}, nil
}

func (s *schemaGeneratorStage) generate(ctx context.Context, exec *Execution, revision Revision) (map[string]any, error) {
	reply, err := exec.Call(ctx, schemaGeneratorMessages(exec.Context, revision))
	if err != nil {
		return nil, WrapStage(nil, s.ID(), "generate json-ld", "", err)
	}

	var schema map[string]any
	if err := DecodeModelJSON(reply.Content, &schema); err != nil {
		return nil, WrapStage(nil, s.ID(), "generate json-ld", "", err)
	}
	if len(schema) == 0 {
		return nil, WrapStage(ErrParse, s.ID(), "generate json-ld", "object is empty", nil)
	}
	if _, ok := schema["@type"]; !ok {
		return nil, WrapStage(ErrParse, s.ID(), "generate json-ld", `object has no "@type"`, nil)
	}
	if _, ok := schema["@context"]; !ok {
		schema["@context"] = "https://schema.org"
	}
	return schema, nil
}
