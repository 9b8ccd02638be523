package storage

// Option configures a Put call.
type Option func(*putOptions)

type putOptions struct {
	key         string
	prefix      string
	tenant      string
	contentType string
	rules       []ValidationRule
}

func newPutOptions(opts []Option) *putOptions {
	o := &putOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithKey stores the blob under key instead of a generated one.
func WithKey(key string) Option {
	return func(o *putOptions) {
		o.key = key
	}
}

// WithPrefix inserts a path segment between the tenant and the file name.
func WithPrefix(prefix string) Option {
	return func(o *putOptions) {
		o.prefix = prefix
	}
}

// WithTenant makes id the first segment of the generated key.
// Blobs of one owner then share a common key prefix.
func WithTenant(id string) Option {
	return func(o *putOptions) {
		o.tenant = id
	}
}

// WithContentType skips detection and records ct as the content type.
func WithContentType(ct string) Option {
	return func(o *putOptions) {
		o.contentType = ct
	}
}

// WithValidation runs rules against size and content type before storing.
// The first failing rule aborts the upload with a *FileValidationError.
func WithValidation(rules ...ValidationRule) Option {
	return func(o *putOptions) {
		o.rules = append(o.rules, rules...)
	}
}
