package middleware

import (
	"errors"
	"net/http"
	"strings"

	"product-catalog-platform/shared/authx"
	"product-catalog-platform/shared/httpx"
	"product-catalog-platform/shared/sellerx"
)

// SellerMiddleware resolves the seller the request acts on behalf of. The
// authenticated token is authoritative; the X-Seller-ID header may narrow
// to an explicitly requested seller but never widen beyond the token.
type SellerMiddleware struct {
	Skip func(*http.Request) bool
}

func (m SellerMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skip != nil && m.Skip(r) {
			next.ServeHTTP(w, r)
			return
		}

		auth, ok := authx.FromContext(r.Context())
		if !ok || auth.SellerID == "" {
			httpx.WriteError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "missing seller identity", nil)
			return
		}

		requested := strings.TrimSpace(r.Header.Get("X-Seller-ID"))
		if err := validateRequestedSeller(auth, requested); err != nil {
			httpx.WriteError(w, r, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
			return
		}

		seller := sellerx.SellerContext{ID: auth.SellerID, Email: auth.Email}
		if requested != "" {
			seller.ID = requested
		}

		ctx := sellerx.WithSeller(r.Context(), seller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validateRequestedSeller(auth authx.AuthContext, requested string) error {
	if requested == "" || requested == auth.SellerID {
		return nil
	}
	// Operators with the admin role may act on any seller.
	for _, role := range auth.Roles {
		if role == "admin" {
			return nil
		}
	}
	return errors.New("seller mismatch")
}
