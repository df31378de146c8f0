package platform

import (
	"context"

	"github.com/aretw0/notely/pkg/core"
)

// New initializes a repository and wires the domain service over it.
//
//	svc, err := platform.New(ctx, "./vault", platform.WithAutoInit(true))
func New(ctx context.Context, uri string, opts ...Option) (*core.Service, error) {
	repo, err := Init(ctx, uri, opts...)
	if err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	var svcOpts []core.ServiceOption
	if o.logger != nil {
		svcOpts = append(svcOpts, core.WithServiceLogger(o.logger))
	}
	if size, ok := o.config["event_buffer"].(int); ok && size > 0 {
		svcOpts = append(svcOpts, core.WithEventBuffer(size))
	}
	if cost, ok := o.config["password_cost"].(int); ok && cost > 0 {
		svcOpts = append(svcOpts, core.WithPasswordCost(cost))
	}

	return core.NewService(repo, svcOpts...), nil
}
