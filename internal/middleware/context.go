package middleware

import "context"

type contextKey string

const instanceSinkKey contextKey = "instanceSink"

func withInstanceSink(ctx context.Context, sink *string) context.Context {
	return context.WithValue(ctx, instanceSinkKey, sink)
}
