package query

import (
	"strings"

	"github.com/goliatone/go-renderlink/core"
	"github.com/goliatone/go-renderlink/params"
)

const (
	TypeRenderStatus = "renderlink.query.render.status"
	TypeGenerateURL  = "renderlink.query.url.generate"
)

type RenderStatusMessage struct {
	RenderID string
}

func (RenderStatusMessage) Type() string { return TypeRenderStatus }

func (m RenderStatusMessage) Validate() error {
	if strings.TrimSpace(m.RenderID) == "" {
		return core.FieldError("query", "render_id", "render id is required")
	}
	return nil
}

// LinkMode selects how GenerateURLQuery signs the link.
type LinkMode string

const (
	LinkModeDefault  LinkMode = ""
	LinkModeSigned   LinkMode = "signed"
	LinkModeUnsigned LinkMode = "unsigned"
)

type GenerateURLMessage struct {
	Params *params.Bag
	Format string
	Mode   LinkMode
}

func (GenerateURLMessage) Type() string { return TypeGenerateURL }

func (m GenerateURLMessage) Validate() error {
	if m.Params == nil || m.Params.Len() == 0 {
		return core.FieldError("query", "params", "render parameters are required")
	}
	switch m.Mode {
	case LinkModeDefault, LinkModeSigned, LinkModeUnsigned:
		return nil
	default:
		return core.FieldError("query", "mode", "unknown link mode "+string(m.Mode))
	}
}
