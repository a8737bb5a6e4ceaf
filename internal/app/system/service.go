package system

import "context"

// Service is a ledger component the Manager starts in registration order and
// stops in reverse. Start must return once the component is running; work
// that outlives it, such as the reward scheduler or the stream publisher,
// runs in goroutines that Stop ends.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NoopService reserves a name in the Manager for a component that has no
// background work, such as the ledger engine itself.
type NoopService struct {
	ServiceName string
}

func (n NoopService) Name() string                  { return n.ServiceName }
func (NoopService) Start(ctx context.Context) error { return nil }
func (NoopService) Stop(ctx context.Context) error  { return nil }
