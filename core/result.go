package core

// RenderResult holds the artifact locations attached to a finished render.
type RenderResult struct {
	RenderURL   string         `json:"renderUrl"`
	Size        int64          `json:"size"`
	HTMLURL     string         `json:"htmlUrl,omitempty"`
	MHTMLURL    string         `json:"mhtmlUrl,omitempty"`
	MetadataURL string         `json:"metadataUrl,omitempty"`
	MarkdownURL string         `json:"markdownUrl,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// RenderErrorDetail is the error object reported for a failed render.
type RenderErrorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}
