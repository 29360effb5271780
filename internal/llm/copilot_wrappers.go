package llm

import (
	"context"

	copilot "github.com/github/copilot-sdk/go"
)

//go:generate go tool mockgen -source copilot_wrappers.go -destination copilot_mocks_test.go -package llm

// copilotSession is the part of [*copilot.Session] a Generate call drives.
type copilotSession interface {
	On(handler copilot.SessionEventHandler) func()
	SendAndWait(ctx context.Context, options copilot.MessageOptions) (*copilot.SessionEvent, error)
}

// copilotClient is the part of [*copilot.Client] a Generate call drives. Each
// call owns one client from Start to Stop.
type copilotClient interface {
	CreateSession(ctx context.Context, config *copilot.SessionConfig) (copilotSession, error)
	Start(ctx context.Context) error
	Stop() error
}

// sdkClient adapts the SDK client; Start and Stop are promoted as-is.
type sdkClient struct {
	*copilot.Client
}

func newCopilotClient(clientOptions *copilot.ClientOptions) copilotClient {
	return sdkClient{Client: copilot.NewClient(clientOptions)}
}

// CreateSession narrows the returned session so tests can substitute it. A nil
// *copilot.Session must not leak into a non-nil interface.
func (c sdkClient) CreateSession(ctx context.Context, config *copilot.SessionConfig) (copilotSession, error) {
	session, err := c.Client.CreateSession(ctx, config)
	if err != nil {
		return nil, err
	}
	return session, nil
}
