package chat

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mdnsystems/OmniCare-sub005/internal/auth"
	"github.com/mdnsystems/OmniCare-sub005/internal/tenant"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withIdentity simula RequireAuth + tenant.Middleware usando ?as=<userID>.
func withIdentity(clinic uuid.UUID, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if as := r.URL.Query().Get("as"); as != "" {
			tid := clinic.String()
			ctx = auth.WithClaims(ctx, &auth.Claims{UserID: as, Role: auth.RoleProfessional, TenantID: &tid})
			ctx = tenant.WithInfo(ctx, tenant.Info{ID: clinic, Active: true, BlockLevel: "NONE"})
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func dial(t *testing.T, srv *httptest.Server, user uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?as=" + user.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	var ready Outbound
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ready))
	assert.Equal(t, FrameReady, ready.Type)
	return conn
}

func TestWebSocketRoundTrip(t *testing.T) {
	clinic := uuid.New()
	alice, bob := uuid.New(), uuid.New()
	store := newMemStore()
	store.members[alice] = clinic
	store.members[bob] = clinic
	hub := NewHub(zerolog.Nop())
	svc := &Service{Store: store, Hub: hub, Log: zerolog.Nop()}
	h := NewWSHandler(hub, svc, []string{"*"}, zerolog.Nop())

	mux := http.NewServeMux()
	mux.Handle("/ws", withIdentity(clinic, h))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := dial(t, srv, alice)
	defer a.Close()
	b := dial(t, srv, bob)
	defer b.Close()

	require.Eventually(t, func() bool { return hub.RoomCount(TenantRoom(clinic)) == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.WriteJSON(Inbound{Type: FrameMessage, To: bob.String(), Content: "olá"}))
	var got Outbound
	require.NoError(t, b.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, b.ReadJSON(&got))
	assert.Equal(t, FrameMessage, got.Type)
	require.NotNil(t, got.Message)
	assert.Equal(t, "olá", got.Message.Content)
	assert.Equal(t, alice, got.Message.SenderID)

	require.NoError(t, a.WriteJSON(Inbound{Type: FrameMessage, To: bob.String(), Content: ""}))
	var echo, errFrame Outbound
	require.NoError(t, a.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, a.ReadJSON(&echo))
	assert.Equal(t, FrameMessage, echo.Type)
	require.NoError(t, a.ReadJSON(&errFrame))
	assert.Equal(t, FrameError, errFrame.Type)
	assert.Equal(t, ErrEmptyContent.Error(), errFrame.Error)
}

func TestWebSocketRequiresIdentity(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	h := NewWSHandler(hub, &Service{Store: newMemStore(), Hub: hub}, nil, zerolog.Nop())
	srv := httptest.NewServer(withIdentity(uuid.New(), h))
	defer srv.Close()
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	h := NewWSHandler(hub, &Service{Store: newMemStore(), Hub: hub}, []string{"http://app.local"}, zerolog.Nop())
	srv := httptest.NewServer(withIdentity(uuid.New(), h))
	defer srv.Close()
	header := http.Header{"Origin": []string{"http://evil.local"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/?as="+uuid.NewString(), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
