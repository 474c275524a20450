package metrics

import (
	"go.uber.org/fx"

	"github.com/polkiloo/coursemart/internal/usecase"
)

// Module provides the Prometheus collectors and binds them as the engine recorder.
var Module = fx.Provide(
	New,
	func(m *Metrics) usecase.Recorder { return m },
)
