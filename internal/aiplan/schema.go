package aiplan

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

// PlanSchemaName is the schema name sent in the response_format block.
const PlanSchemaName = "TravelPlanResponse"

var planSchemaOnce sync.Once
var planSchema *huma.Schema

// PlanResponseSchema is the JSON Schema the model output must satisfy.
// The same object is serialized into the request's response_format and
// used to validate the reply.
func PlanResponseSchema() *huma.Schema {
	planSchemaOnce.Do(func() {
		planSchema = &huma.Schema{
			Type: huma.TypeObject,
			Properties: map[string]*huma.Schema{
				"schedule": {
					Type:        huma.TypeArray,
					Description: "Complete daily schedule for ALL days of the trip. Must include every single day from day 1 to the last day.",
					Items: &huma.Schema{
						Type: huma.TypeObject,
						Properties: map[string]*huma.Schema{
							"day": {
								Type:        huma.TypeNumber,
								Description: "Day number (1, 2, 3, etc.). MUST include ALL days from 1 to the total number of days requested.",
							},
							"activities": {
								Type:        huma.TypeArray,
								Description: "List of 3-5 activities for the day",
								Items: &huma.Schema{
									Type:        huma.TypeString,
									Description: "Activity description",
								},
							},
						},
						Required:             []string{"day", "activities"},
						AdditionalProperties: false,
					},
				},
			},
			Required:             []string{"schedule"},
			AdditionalProperties: false,
		}
		planSchema.PrecomputeMessages()
	})
	return planSchema
}

var schemaRegistry = huma.NewMapRegistry("#/components/schemas/", huma.DefaultSchemaNamer)

// validateJSON parses content and checks it against schema. Malformed
// JSON and schema mismatch are reported as distinct validation errors.
func validateJSON(schema *huma.Schema, content []byte) error {
	var parsed any
	if err := json.Unmarshal(content, &parsed); err != nil {
		return wrapError(KindValidation, err, "failed to parse response content as JSON")
	}

	pb := huma.NewPathBuffer([]byte(""), 0)
	res := &huma.ValidateResult{}
	huma.Validate(schemaRegistry, schema, pb, huma.ModeReadFromServer, parsed, res)
	if len(res.Errors) > 0 {
		details := make([]string, 0, len(res.Errors))
		for _, e := range res.Errors {
			details = append(details, e.Error())
		}
		verr := newError(KindValidation, fmt.Sprintf("response does not match expected schema (%d violations)", len(details)))
		verr.Details = details
		return verr
	}
	return nil
}
