package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AnshRaj112/tandem-backend/internal/handlers"
	"github.com/AnshRaj112/tandem-backend/internal/pairing"
	"github.com/AnshRaj112/tandem-backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type noSessions struct{}

func (noSessions) Validate(context.Context, string) (string, bool, error) { return "", false, nil }

func TestSetupRoutes_Guards(t *testing.T) {
	h := handlers.New(handlers.Deps{
		Coordinator: pairing.NewCoordinator(pairing.CoordinatorConfig{Logger: zerolog.Nop()}),
		Hub:         services.NewChatHub(nil, zerolog.Nop()),
		Logger:      zerolog.Nop(),
	})
	r := chi.NewRouter()
	SetupRoutes(r, h, Options{Sessions: noSessions{}, Logger: zerolog.Nop()})

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/users/me", http.StatusUnauthorized},
		{http.MethodPost, "/api/media", http.StatusUnauthorized},
		{http.MethodGet, "/ws/chat", http.StatusUnauthorized},
		{http.MethodGet, "/api/admin/connections", http.StatusUnauthorized},
		{http.MethodPost, "/api/admin/users/u1/block", http.StatusUnauthorized},
		{http.MethodGet, "/api/nope", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
