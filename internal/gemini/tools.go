package gemini

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/set-night/mindvoice/internal/config"
	"github.com/set-night/mindvoice/internal/domain"
	"google.golang.org/genai"
)

const systemPrompt = `You are a friendly personal assistant that talks with one person by voice and chat.
Answer concisely: replies are often read aloud.
When the user asks to email, call, text, find a place on a map or play music, call openApplication.
When the user asks for a picture, call generateImage.
When the user asks for a hard multi-step problem (maths, planning, code), call solveComplexTask.
You may reply with a short sentence before calling a function.`

type toolSpec struct {
	name        domain.FunctionName
	description string
	schema      *jsonschema.Schema
}

func aspectRatios() []any {
	out := make([]any, 0, len(config.SupportedAspectRatios))
	for _, r := range config.SupportedAspectRatios {
		out = append(out, r)
	}
	return out
}

var assistantTools = []toolSpec{
	{
		name:        domain.FuncOpenApplication,
		description: "Open an external application on the user's device with a prepared query.",
		schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"appName": {
					Type:        "string",
					Description: "Application to open.",
					Enum:        []any{"email", "phone", "sms", "maps", "spotify"},
				},
				"query": {
					Type:        "string",
					Description: "Recipient, number, place or search text for the application.",
				},
			},
			Required: []string{"appName", "query"},
		},
	},
	{
		name:        domain.FuncGenerateImage,
		description: "Generate an image from a text description.",
		schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"prompt": {
					Type:        "string",
					Description: "Detailed description of the image.",
				},
				"aspectRatio": {
					Type:        "string",
					Description: "Image aspect ratio.",
					Enum:        aspectRatios(),
				},
			},
			Required: []string{"prompt"},
		},
	},
	{
		name:        domain.FuncSolveComplexTask,
		description: "Hand a difficult reasoning problem to a slower, more thorough model.",
		schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"prompt": {
					Type:        "string",
					Description: "The complete problem statement.",
				},
			},
			Required: []string{"prompt"},
		},
	},
}

func functionDeclarations() []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(assistantTools))
	for _, t := range assistantTools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        string(t.name),
			Description: t.description,
			Parameters:  convSchema(t.schema),
		})
	}
	return decls
}

func convSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}

	enums := make([]string, 0, len(schema.Enum))
	for _, v := range schema.Enum {
		enums = append(enums, fmt.Sprintf("%v", v))
	}

	gs := genai.Schema{
		Format:      schema.Format,
		Description: schema.Description,
		Enum:        enums,
		Items:       convSchema(schema.Items),
		Required:    schema.Required,
	}
	if n := len(schema.Properties); n > 0 {
		gs.Properties = make(map[string]*genai.Schema, n)
		for k, prop := range schema.Properties {
			gs.Properties[k] = convSchema(prop)
		}
	}
	switch schema.Type {
	case "object":
		gs.Type = genai.TypeObject
	case "array":
		gs.Type = genai.TypeArray
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	}
	return &gs
}
