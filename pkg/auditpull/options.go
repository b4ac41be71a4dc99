package auditpull

type options struct {
	provider string
	orgID    string
}

// Option configures a Normalizer.
type Option func(*options)

// WithProvider sets the provider name stamped on every event. Default: "openai".
func WithProvider(p string) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithOrgID sets the organization ID copied into every event.
func WithOrgID(id string) Option {
	return func(o *options) {
		o.orgID = id
	}
}

func defaultOptions() options {
	return options{provider: "openai"}
}
