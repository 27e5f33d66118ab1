// Package net provides utilities for working with request contexts
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// ctxKey is an unexported key type for context values
type ctxKey string

const (
	keyCountry ctxKey = "country"
)

// WithRequest annotates context with common request scoped ids
func WithRequest(ctx context.Context, reqID, country string) context.Context {
	if reqID != "" {
		// set chi RequestID so chimw.GetReqID can retrieve it
		ctx = context.WithValue(ctx, chimw.RequestIDKey, reqID)
	}
	if country != "" {
		ctx = context.WithValue(ctx, keyCountry, country)
	}
	return ctx
}

// RequestID returns the request id on the context if present
func RequestID(ctx context.Context) string {
	if v := chimw.GetReqID(ctx); v != "" {
		return v
	}
	return ""
}

// Country returns the country scope on the context if present
func Country(ctx context.Context) string {
	if v, ok := ctx.Value(keyCountry).(string); ok {
		return v
	}
	return ""
}
