package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-renderlink/render"
)

var (
	_ gocmd.Querier[RenderStatusMessage, render.Snapshot] = (*RenderStatusQuery)(nil)
	_ gocmd.Querier[GenerateURLMessage, string]           = (*GenerateURLQuery)(nil)
)
