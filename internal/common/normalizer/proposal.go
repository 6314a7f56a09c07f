package normalizer

import (
	"fmt"
	"strings"

	"github.com/project-tktt/request-relay/internal/domain"
)

const priceLine = "Price: €%d | Delivery: %dh"

var proposalTemplates = map[string]string{
	"website": `Hi! I can build your %s with clean, mobile-responsive design.

My approach:
1. Design mockup based on your requirements
2. Build responsive HTML/CSS/JS
3. Optimize for mobile and speed

` + priceLine + `

Question: Do you need any specific features like contact forms or booking systems?`,

	"scraping": `Hi! I can extract that data cleanly and reliably using Python.

My approach:
1. Build scraper with error handling
2. Extract and validate all data
3. Export to your preferred format

` + priceLine + `

Question: Do you need this as one-time or recurring updates?`,

	"writing": `Hi! I can create engaging, SEO-optimized content that resonates with your audience.

My approach:
1. Research keywords and structure
2. Write clear, actionable content
3. Optimize for search and readability

` + priceLine + `

Question: Do you have specific keywords or topics in mind?`,

	"data": `Hi! I can handle this data work efficiently and accurately.

My approach:
1. Clean and organize the data
2. Perform required analysis/entry
3. Deliver in your preferred format

` + priceLine + `

Question: What format would you like the final deliverable in?`,

	"api": `Hi! I can integrate those services seamlessly.

My approach:
1. Set up secure API connections
2. Build error handling and logging
3. Test thoroughly and document

` + priceLine + `

Question: Do you have API credentials ready?`,
}

const genericProposal = "Hi! I can help with this project.\n\n" + priceLine

// GenerateProposal fills the reply template for the job's category.
// Delivery is the effort estimate times 24, truncated.
func GenerateProposal(job *domain.Job) string {
	delivery := int(job.Effort * 24)

	switch job.Category {
	case "website":
		return fmt.Sprintf(proposalTemplates["website"], strings.ToLower(job.Title), job.Budget, delivery)
	default:
		tmpl, ok := proposalTemplates[job.Category]
		if !ok {
			tmpl = genericProposal
		}
		return fmt.Sprintf(tmpl, job.Budget, delivery)
	}
}
