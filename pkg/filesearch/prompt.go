package filesearch

import (
	"fmt"
	"strings"
)

// DefaultSystemPrompt instructs the model to verify bug bounty programs
// against the attached store and answer with a single JSON object.
const DefaultSystemPrompt = `You are a specialized tool for verifying the existence and details of a bug bounty program based on the user's input. ` +
	`**Strictly use the File Search tool on the provided vector store** to find a matching bug bounty program. ` +
	`If a match is found, extract the required details. ` +
	`**Respond strictly in a single JSON object only**, with no explanations, extra text, or markdown formatting (e.g., no ` + "```json ```" + `). ` +
	`The required fields are: ` +
	`* **'Found'**: (string, 'Yes' or 'No') Indicate if a bug bounty program was found for the input. ` +
	`* **'Source'**: (string, the name or ID of the document/file in the vector store where the information was found, or 'N/A' if not found). ` +
	`* **'Rewards'**: (string, 'Yes' or 'No') Indicate if the program offers monetary or non-monetary rewards. ` +
	`Example of expected output: {'Found': 'Yes', 'Source': 'vector_store_doc_123', 'Rewards': 'Yes'}`

// SystemInstruction returns the default prompt bound to query.
func SystemInstruction(query string) string {
	return fmt.Sprintf("%s\nInput: %s", DefaultSystemPrompt, strings.TrimSpace(query))
}
