package docmap

// Option is an option for configuring a query context
type Option func(q *QueryContext)

// WithConfig sets the configuration of the query context
func WithConfig(config Config) Option {
	return func(q *QueryContext) {
		q.config = config
	}
}

// WithLogger sets the logger of the query context
func WithLogger(logger Logger) Option {
	return func(q *QueryContext) {
		q.logger = logger
	}
}

// WithFactory sets the factory that builds models out of raw documents
func WithFactory(factory Factory) Option {
	return func(q *QueryContext) {
		q.factory = factory
	}
}

// WithEagerLoader sets the eager loader applied to every materialized result
func WithEagerLoader(loader EagerLoader) Option {
	return func(q *QueryContext) {
		q.eager = loader
	}
}

// WithLocale overrides the configured locale
func WithLocale(locale string) Option {
	return func(q *QueryContext) {
		q.localeOverride = locale
	}
}
