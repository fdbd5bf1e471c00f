package content

import "context"

// Viewer identifies who is reading content. The zero value is an anonymous
// public caller, which is what every context without a viewer resolves to.
type Viewer struct {
	AccountID int64
	Admin     bool
}

// SystemViewer is used by trusted in-process callers such as the importer.
var SystemViewer = Viewer{Admin: true}

type viewerKey struct{}

// WithViewer returns a copy of ctx carrying v.
func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerKey{}, v)
}

// ViewerFrom returns the viewer stored in ctx, or the public viewer.
func ViewerFrom(ctx context.Context) Viewer {
	if v, ok := ctx.Value(viewerKey{}).(Viewer); ok {
		return v
	}
	return Viewer{}
}

// IsPublic reports whether private rows must be hidden from v.
func (v Viewer) IsPublic() bool { return !v.Admin }

// canSee reports whether a row with the given visibility is visible in ctx.
func canSee(ctx context.Context, visibility string) bool {
	return !ViewerFrom(ctx).IsPublic() || visibility == "public"
}
