package costanalysis

import (
	"github.com/finopslab/costlens/internal/costanalysis/service"
	"go.uber.org/fx"
)

var Module = fx.Module("costanalysis",
	fx.Provide(service.New),
)
