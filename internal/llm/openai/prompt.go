package openai

import "strings"

const (
	systemPrompt = "You are an expert at converting handwritten mathematics into LaTeX. " +
		"Transcribe the mathematical expressions visible in the image into accurate LaTeX source. " +
		"Respond with the LaTeX code only. No explanations, no prose, no markdown code fences."

	userPrompt = "Convert this handwritten math to LaTeX. Provide only the LaTeX code."
)

func buildMessages(imageDataURI string) []chatMessage {
	return []chatMessage{
		{
			Role:    "system",
			Content: systemPrompt,
		},
		{
			Role: "user",
			Content: []contentPart{
				{
					Type: "image_url",
					ImageURL: &imageURL{
						URL:    imageDataURI,
						Detail: "high",
					},
				},
				{
					Type: "text",
					Text: userPrompt,
				},
			},
		},
	}
}

// StripFences removes markdown code-fence markers the model may have wrapped
// around the LaTeX despite being told not to. Applied unconditionally as a
// post-condition of extraction.
func StripFences(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```latex")
	s = strings.TrimPrefix(s, "```tex")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
