package i18n

import "net/http"

// Middleware injects a localizer for the request's language into the context.
// A lang query parameter takes precedence over the Accept-Language header;
// the configured default applies when neither is present.
func Middleware(defaultLang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			langs := make([]string, 0, 3)
			if q := r.URL.Query().Get("lang"); q != "" {
				langs = append(langs, q)
			}
			if al := r.Header.Get("Accept-Language"); al != "" {
				langs = append(langs, al)
			}
			langs = append(langs, defaultLang)

			ctx := WithLocalizer(r.Context(), NewLocalizer(langs...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
