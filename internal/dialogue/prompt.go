package dialogue

import (
	"fmt"

	"github.com/kalambet/booktalk/internal/catalog"
)

const promptTemplate = `You are a friendly assistant talking with young readers about the book "%s". Your goal is to get them excited about reading it.

Use only the following book content to answer questions:

%s

Keep your responses focused on this book and related literary discussion. If a question cannot be answered from the content above, politely say so instead of guessing.`

// SystemPrompt builds the instruction that scopes the model to one book.
// It is rebuilt on every turn.
func SystemPrompt(b catalog.Book) string {
	return fmt.Sprintf(promptTemplate, b.Title, b.Content)
}
