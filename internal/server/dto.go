package server

import "github.com/StefanMuellerAI/LinkedIn-Editor/internal/aggregate"

type TransformRequest struct {
	Text              string            `json:"text"`
	Type              string            `json:"type"`
	AdditionalContent aggregate.Sources `json:"additionalContent"`
}

type TransformResponse struct {
	TransformedText string              `json:"transformedText"`
	Provider        string              `json:"provider"`
	TotalTokens     int                 `json:"totalTokens"`
	Warnings        []aggregate.Warning `json:"warnings"`
}

type ScrapeRequest struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

type ScrapeResponse struct {
	Content string `json:"content"`
}

type ErrorResponse struct {
	Error     string   `json:"error"`
	Details   string   `json:"details,omitempty"`
	Kind      string   `json:"kind,omitempty"`
	Available []string `json:"available,omitempty"`
}

type TemplatesResponse struct {
	Types []string `json:"types"`
}
