package classifier

import (
	"fmt"
	"strings"

	"tellnow/backend/internal/ai"
)

const (
	geoSystemPrompt            = "You are an expert in Italian geolocation. Reply only with precise data."
	classificationSystemPrompt = "You are an expert in problems reported to the Italian public administration."
)

func geoMessages(postalCode string) []ai.Message {
	builder := &strings.Builder{}
	builder.WriteString("You are an expert in Italian geography.\n")
	fmt.Fprintf(builder, "For the postal code (CAP) %s, reply ONLY with a JSON object:\n", strings.TrimSpace(postalCode))
	builder.WriteString("{\n")
	builder.WriteString("  \"city\": \"exact name of the city\",\n")
	builder.WriteString("  \"coordinates\": [latitude, longitude]\n")
	builder.WriteString("}\n")
	builder.WriteString("IMPORTANT: be precise and accurate. Emit nothing outside the JSON object.")
	return []ai.Message{ai.System(geoSystemPrompt), ai.User(builder.String())}
}

func classificationMessages(issueText string, categories []Category) []ai.Message {
	builder := &strings.Builder{}
	builder.WriteString("Analyze this problem reported to the Italian public administration:\n")
	builder.WriteString(issueText)
	builder.WriteString("\n\nAvailable categories:\n")
	for _, c := range categories {
		fmt.Fprintf(builder, "- %s: %s\n", c.Key, c.Description)
	}
	builder.WriteString("\nReply ONLY with a JSON object:\n")
	builder.WriteString("{\n")
	builder.WriteString("  \"category\": \"one of the category keys above\",\n")
	builder.WriteString("  \"urgency\": \"urgency level (low, medium, high)\",\n")
	builder.WriteString("  \"explanation\": \"short explanation in Italian\"\n")
	builder.WriteString("}")
	return []ai.Message{ai.System(classificationSystemPrompt), ai.User(builder.String())}
}
