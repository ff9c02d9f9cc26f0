// Package core contains the shared contracts of the render SDK: configuration,
// the error taxonomy, logger and metrics seams, and transport/job contracts.
// Component packages (params, signing, webhooks, render, transport) depend on
// core; core must not depend on any of them.
package core
