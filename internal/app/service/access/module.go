package access

import "go.uber.org/fx"

// Module exposes the access decision service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
