package ai

// Message is a single role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest describes one chat-completion call.
type CompletionRequest struct {
	Messages    []Message
	Temperature float64
}

// System builds a system-role message.
func System(content string) Message {
	return Message{Role: "system", Content: content}
}

// User builds a user-role message.
func User(content string) Message {
	return Message{Role: "user", Content: content}
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
