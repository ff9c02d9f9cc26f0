package gocommand

import (
	"errors"
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"

	"github.com/goliatone/go-renderlink"
	renderlinkcommand "github.com/goliatone/go-renderlink/command"
	renderlinkquery "github.com/goliatone/go-renderlink/query"
	"github.com/goliatone/go-renderlink/render"
)

// RegisterFacade registers every command and query handler exposed by facade
// and subscribes them on the default dispatcher. On failure any subscription
// already made is released.
func RegisterFacade(
	adapter *RegistryAdapter,
	facade *renderlink.Facade,
	runnerOpts ...runner.Option,
) ([]commanddispatcher.Subscription, error) {
	if facade == nil {
		return nil, fmt.Errorf("gocommand: facade is required")
	}
	commands := facade.Commands()
	queries := facade.Queries()

	var subscriptions []commanddispatcher.Subscription
	register := func(subscribe func() (commanddispatcher.Subscription, error)) error {
		subscription, err := subscribe()
		if err != nil {
			return err
		}
		subscriptions = append(subscriptions, subscription)
		return nil
	}

	err := errors.Join(
		register(func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[renderlinkcommand.SubmitRenderMessage](adapter, commands.SubmitRender, runnerOpts...)
		}),
		register(func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[renderlinkcommand.AwaitRenderMessage](adapter, commands.AwaitRender, runnerOpts...)
		}),
		register(func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[renderlinkcommand.RenderAndWaitMessage](adapter, commands.RenderAndWait, runnerOpts...)
		}),
		register(func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[renderlinkcommand.VerifyWebhookMessage](adapter, commands.VerifyWebhook, runnerOpts...)
		}),
		register(func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[renderlinkquery.RenderStatusMessage, render.Snapshot](adapter, queries.RenderStatus, runnerOpts...)
		}),
		register(func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[renderlinkquery.GenerateURLMessage, string](adapter, queries.GenerateURL, runnerOpts...)
		}),
	)
	if err != nil {
		for _, subscription := range subscriptions {
			if subscription != nil {
				subscription.Unsubscribe()
			}
		}
		return nil, err
	}
	return subscriptions, nil
}
