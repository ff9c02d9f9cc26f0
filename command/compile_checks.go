package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[SubmitRenderMessage]  = (*SubmitRenderCommand)(nil)
	_ gocmd.Commander[AwaitRenderMessage]   = (*AwaitRenderCommand)(nil)
	_ gocmd.Commander[RenderAndWaitMessage] = (*RenderAndWaitCommand)(nil)
	_ gocmd.Commander[VerifyWebhookMessage] = (*VerifyWebhookCommand)(nil)
)
