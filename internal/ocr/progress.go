package ocr

import "context"

// ProgressFunc is called before each page is recognized.
type ProgressFunc func(fileName string, page, pages int)

type progressKey struct{}

// WithProgress attaches a page progress callback to ctx.
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

func progressFromCtx(ctx context.Context) ProgressFunc {
	fn, _ := ctx.Value(progressKey{}).(ProgressFunc)
	return fn
}
