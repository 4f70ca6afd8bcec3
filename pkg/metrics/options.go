package metrics

// Option defines some options to the registry initialization
type Option func(*settings)

type settings struct {
	runtime bool
}

func defaultSettings() *settings {
	return &settings{runtime: true}
}

// WithRuntimeCollectors enables or disables the go runtime and process collectors. They are enabled by default.
func WithRuntimeCollectors(enabled bool) Option {
	return func(s *settings) {
		s.runtime = enabled
	}
}
