package query

import (
	"context"

	"github.com/goliatone/go-renderlink/core"
	"github.com/goliatone/go-renderlink/params"
	"github.com/goliatone/go-renderlink/render"
)

type RenderStatusReader interface {
	Status(ctx context.Context, renderID string) (render.Snapshot, error)
}

type LinkGenerator interface {
	GenerateURL(bag *params.Bag, format string) (string, error)
	GenerateSignedURL(bag *params.Bag, format string) (string, error)
	GenerateUnsignedURL(bag *params.Bag, format string) (string, error)
}

type RenderStatusQuery struct {
	reader RenderStatusReader
}

func NewRenderStatusQuery(reader RenderStatusReader) *RenderStatusQuery {
	return &RenderStatusQuery{reader: reader}
}

func (q *RenderStatusQuery) Query(ctx context.Context, msg RenderStatusMessage) (render.Snapshot, error) {
	if q == nil || q.reader == nil {
		return render.Snapshot{}, core.MissingDependency("query", "render status reader")
	}
	return q.reader.Status(ctx, msg.RenderID)
}

type GenerateURLQuery struct {
	links LinkGenerator
}

func NewGenerateURLQuery(links LinkGenerator) *GenerateURLQuery {
	return &GenerateURLQuery{links: links}
}

func (q *GenerateURLQuery) Query(_ context.Context, msg GenerateURLMessage) (string, error) {
	if q == nil || q.links == nil {
		return "", core.MissingDependency("query", "link generator")
	}
	switch msg.Mode {
	case LinkModeSigned:
		return q.links.GenerateSignedURL(msg.Params, msg.Format)
	case LinkModeUnsigned:
		return q.links.GenerateUnsignedURL(msg.Params, msg.Format)
	case LinkModeDefault:
		return q.links.GenerateURL(msg.Params, msg.Format)
	default:
		return "", core.UsageError(nil, "query: unknown link mode "+string(msg.Mode), map[string]any{"mode": string(msg.Mode)})
	}
}

func (*RenderStatusQuery) MessageType() string { return TypeRenderStatus }

func (*GenerateURLQuery) MessageType() string { return TypeGenerateURL }
