package models

const (
	// Questions with fewer words than this get a related-terms expansion
	// before retrieval.
	ShortQueryWordLimit = 15

	// NoDocumentsMessage is returned when retrieval comes back empty.
	NoDocumentsMessage = "No relevant documents found. Please upload documents first or try a different question."

	// NotInContextMessage is what the answer model is instructed to reply
	// when the retrieved passages do not contain the answer.
	NotInContextMessage = "Answer is not available in the context."
)

var (
	AnswerPromptTemplate = `Answer the question as detailed as possible from the provided context.
If the answer is not in the context, respond with: "` + NotInContextMessage + `"
Context:
%s
Question:
%s
Answer:
`

	ExpansionPromptTemplate = `Provide a list of related search terms (separated by commas) for improving retrieval. Do NOT change the meaning of the query: '%s'`
)
