package tenant

import "context"

// Exchange attributes. Exactly one set exists per request; they are attached
// at slug extraction time and consumed by downstream stages (header
// injection, logging).
type (
	idKey           struct{}
	slugKey         struct{}
	originalPathKey struct{}
)

// WithID attaches the resolved tenant ID to the request context.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey{}, id)
}

// WithSlug attaches the extracted tenant slug to the request context.
func WithSlug(ctx context.Context, slug string) context.Context {
	return context.WithValue(ctx, slugKey{}, slug)
}

// WithOriginalPath records the pre-rewrite request path.
func WithOriginalPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, originalPathKey{}, path)
}

// ID returns the tenant ID attribute, if set.
func ID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(idKey{}).(string)
	return id, ok
}

// Slug returns the tenant slug attribute, if set.
func Slug(ctx context.Context) (string, bool) {
	slug, ok := ctx.Value(slugKey{}).(string)
	return slug, ok
}

// OriginalPath returns the pre-rewrite path attribute, if set.
func OriginalPath(ctx context.Context) (string, bool) {
	path, ok := ctx.Value(originalPathKey{}).(string)
	return path, ok
}
