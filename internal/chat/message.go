package chat

import "time"

type Author string

const (
	User   Author = "user"
	Eryon  Author = "eryon"
	System Author = "system"
)

type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

type GroundingChunk struct {
	Web  *Source `json:"web,omitempty"`
	Maps *Source `json:"maps,omitempty"`
}

func (g GroundingChunk) Link() string {
	if g.Web != nil && g.Web.URI != "" {
		return g.Web.URI
	}
	if g.Maps != nil {
		return g.Maps.URI
	}
	return ""
}

func (g GroundingChunk) Label() string {
	if g.Web != nil && g.Web.Title != "" {
		return g.Web.Title
	}
	if g.Maps != nil && g.Maps.Title != "" {
		return g.Maps.Title
	}
	return "Source"
}

type Message struct {
	ID        string
	Author    Author
	Text      string
	ImagePath string
	VideoPath string
	AudioPath string
	Loading   bool
	Grounding []GroundingChunk
	Created   time.Time
}

// Response is the partial message a mode produces.
type Response struct {
	Text      string
	ImagePath string
	VideoPath string
	AudioPath string
	Grounding []GroundingChunk
}

// Transcript is one completed live-conversation turn.
type Transcript struct {
	User  string
	Eryon string
}

func (t Transcript) Empty() bool {
	return t.User == "" && t.Eryon == ""
}
