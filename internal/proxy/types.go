package proxy

import "github.com/kalambet/booktalk/internal/dialogue"

// chatRequest is the OpenAI-compatible chat completion request body.
type chatRequest struct {
	Model       string             `json:"model"`
	Messages    []dialogue.Message `json:"messages"`
	Temperature float64            `json:"temperature"`
}

// chatResponse is the subset of the completion response we read.
type chatResponse struct {
	Choices []struct {
		Message dialogue.Message `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
