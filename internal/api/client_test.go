package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sudooom.im.client/internal/config"
	apperrors "sudooom.im.client/internal/errors"
	"sudooom.im.client/internal/model"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(discard{}, nil))
	client, err := NewClient(config.APIConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}, logger)
	require.NoError(t, err)
	return client, srv
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ada@example.com", req.Email)

		http.SetCookie(w, &http.Cookie{Name: "token", Value: "session-token", Path: "/"})
		json.NewEncoder(w).Encode(map[string]any{
			"data": model.User{ID: "u1", FirstName: "Ada"},
		})
	})
	mux.HandleFunc("GET /api/profile/view", func(w http.ResponseWriter, r *http.Request) {
		// 后续请求必须携带会话 cookie
		ck, err := r.Cookie("token")
		if err != nil || ck.Value != "session-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(model.User{ID: "u1", FirstName: "Ada"})
	})

	client, _ := newTestClient(t, mux)
	ctx := context.Background()

	user, _, err := client.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	profile, err := client.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada", profile.FirstName)

	// 实时通道握手头也要携带同一份 cookie
	header := client.Header()
	assert.Contains(t, header.Get("Cookie"), "session-token")
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected *apperrors.AppError
	}{
		{"unauthorized", http.StatusUnauthorized, apperrors.ErrUnauthorized},
		{"forbidden chat", http.StatusForbidden, apperrors.ErrChatForbidden},
		{"missing conversation", http.StatusNotFound, apperrors.ErrConversationNotFound},
		{"validation", http.StatusBadRequest, apperrors.ErrValidation},
		{"server failure", http.StatusInternalServerError, apperrors.ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]string{"error": "nope"})
			}))

			_, err := client.Profile(context.Background())
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, tt.expected),
				"expected code %d, got %v", tt.expected.Code, err)
		})
	}
}

func TestMessages_Pagination(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/messages/c1", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "30", r.URL.Query().Get("limit"))

		json.NewEncoder(w).Encode(map[string]any{
			"messages": []model.Message{{ID: "m1", ConversationID: "c1"}},
			"meta":     model.PageMeta{Page: 2, Limit: 30, Total: 61},
		})
	}))

	msgs, meta, err := client.Messages(context.Background(), "c1", 2, 30)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.True(t, meta.HasMore(), "2*30 < 61 → 还有更多页")
}

func TestConversationsAndConnections(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/chat/conversations", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"conversations": []model.Conversation{{ID: "c1"}},
			"meta":          model.PageMeta{Page: 1, Limit: 20, Total: 1},
		})
	})
	mux.HandleFunc("GET /api/chat/connections", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"connections": []model.User{{ID: "u2"}},
			"meta":        model.PageMeta{Page: 1, Limit: 20, Total: 1},
		})
	})
	mux.HandleFunc("POST /api/chat/conversation", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ParticipantID string `json:"participantId"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u2", body.ParticipantID)
		json.NewEncoder(w).Encode(map[string]any{
			"conversation": model.Conversation{ID: "c9"},
		})
	})

	client, _ := newTestClient(t, mux)
	ctx := context.Background()

	convs, meta, err := client.Conversations(ctx, 1, 20)
	require.NoError(t, err)
	assert.Len(t, convs, 1)
	assert.False(t, meta.HasMore())

	conns, _, err := client.Connections(ctx, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, "u2", conns[0].ID)

	created, err := client.CreateConversation(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "c9", created.ID)
}

func TestSendAndReviewRequest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/requests/send/u5", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, model.RequestStatusInterested, body.Status)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("PATCH /api/requests/review/r7", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, model.RequestStatusAccepted, body.Status)
		w.WriteHeader(http.StatusOK)
	})

	client, _ := newTestClient(t, mux)
	ctx := context.Background()

	require.NoError(t, client.SendRequest(ctx, "u5", model.RequestStatusInterested))
	require.NoError(t, client.ReviewRequest(ctx, "r7", model.RequestStatusAccepted))
}
