package dispatch

import (
	"fmt"
	"strings"

	"github.com/sahaay-health/sahaay/backend/internal/model/knowledge"
)

// RenderTopic formats a knowledge record into the fixed markdown reply.
func RenderTopic(topic knowledge.Topic) string {
	var b strings.Builder

	b.WriteString("### 📚 Medical Information:\n")
	fmt.Fprintf(&b, "**Description**: %s\n\n", topic.Description)
	fmt.Fprintf(&b, "**Symptoms**:\n- %s\n\n", strings.Join(topic.Symptoms, ", "))
	fmt.Fprintf(&b, "**Care Advice**:\n- %s\n\n", strings.Join(topic.CareAdvice, ", "))
	fmt.Fprintf(&b, "**Mental Health Note**:\n%s\n\n", topic.MentalHealthAdvice)
	b.WriteString("**References**:\n")
	for _, ref := range topic.References {
		fmt.Fprintf(&b, "- From *%s*: %s\n", ref.Title, ref.Excerpt)
	}

	return strings.TrimSpace(b.String())
}
