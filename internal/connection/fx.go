package connection

import (
	"github.com/finopslab/costlens/internal/connection/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("connection",
	fx.Provide(repository.Provide),
)
