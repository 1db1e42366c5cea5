package sellerx

import "context"

type contextKey struct{}

type SellerContext struct {
	ID    string
	Email string
}

func WithSeller(ctx context.Context, seller SellerContext) context.Context {
	return context.WithValue(ctx, contextKey{}, seller)
}

func FromContext(ctx context.Context) (SellerContext, bool) {
	if v := ctx.Value(contextKey{}); v != nil {
		if s, ok := v.(SellerContext); ok {
			return s, true
		}
	}
	return SellerContext{}, false
}

func SellerIDFromContext(ctx context.Context) string {
	if s, ok := FromContext(ctx); ok {
		return s.ID
	}
	return ""
}
