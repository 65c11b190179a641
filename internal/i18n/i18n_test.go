package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "QuizDeflection")
	if got != "Please complete the quiz using the quiz interface." {
		t.Errorf("T(QuizDeflection) = %q", got)
	}

	got = T(ctx, "ReviewClosing")
	if got != "Thanks for practicing today! Your session is complete." {
		t.Errorf("T(ReviewClosing) = %q", got)
	}
}

func TestTranslateSpanish(t *testing.T) {
	ctx := initLang(t, "es")

	got := T(ctx, "QuizDeflection")
	if got != "Por favor completa el cuestionario usando la interfaz del cuestionario." {
		t.Errorf("T(QuizDeflection) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "QuizIntro", map[string]any{
		"Count":   5,
		"Minutes": 5,
		"First":   "Who lays eggs?",
	})
	if !strings.Contains(got, "I have 5 questions for you") {
		t.Errorf("Td(QuizIntro) missing question count: %q", got)
	}
	if !strings.Contains(got, "**Question 1:** Who lays eggs?") {
		t.Errorf("Td(QuizIntro) missing first question: %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want the key itself", got)
	}
}

func TestMiddlewareResolvesRequestLanguage(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	const english = "Please complete the quiz using the quiz interface."
	const spanish = "Por favor completa el cuestionario usando la interfaz del cuestionario."

	tests := []struct {
		name   string
		target string
		header string
		want   string
	}{
		{"default language", "/chat", "", english},
		{"accept-language header", "/chat", "es", spanish},
		{"lang query parameter", "/chat?lang=es", "", spanish},
		{"query beats header", "/chat?lang=en", "es", english},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = T(r.Context(), "QuizDeflection")
			})
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Accept-Language", tt.header)
			}
			Middleware("en")(inner).ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("translated = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUninitializedBundleFallsBackToEnglish(t *testing.T) {
	bundle = nil
	got := T(context.Background(), "QuizDeflection")
	if got != "Please complete the quiz using the quiz interface." {
		t.Errorf("T without Init = %q", got)
	}
}
