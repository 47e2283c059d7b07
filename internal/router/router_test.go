package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/blues/campaignhub/internal/chat"
	"github.com/blues/campaignhub/internal/config"
	"github.com/blues/campaignhub/internal/database/dbtest"
	"github.com/blues/campaignhub/internal/logic"
	"github.com/blues/campaignhub/internal/middleware"
	"github.com/blues/campaignhub/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type routerFixture struct {
	db     *gorm.DB
	engine *gin.Engine
	user   model.UserModel
	admin  model.UserModel
	tokens *middleware.TokenIssuer
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)

	cfg := &config.Config{}
	cfg.JWT = config.JWTConfig{Secret: "router-secret", Issuer: "campaignhub"}
	tokens := middleware.NewTokenIssuer(cfg.JWT)

	notifications := logic.NewNotificationLogic(db, nil)
	chatLogic := logic.NewChatLogic(db, notifications)
	relay, err := chat.NewRelay(chatLogic, chat.NewLocalBroadcaster(), 2)
	require.NoError(t, err)
	t.Cleanup(relay.Close)

	f := &routerFixture{db: db, tokens: tokens}
	f.user = model.UserModel{Email: "user@example.com", Username: "user"}
	f.admin = model.UserModel{Email: "admin@example.com", Username: "admin", IsStaff: true, IsAdmin: true}
	require.NoError(t, db.Create(&f.user).Error)
	require.NoError(t, db.Create(&f.admin).Error)

	f.engine = Setup(Deps{
		Config:        cfg,
		DB:            db,
		Tokens:        tokens,
		Campaigns:     logic.NewCampaignLogic(db),
		Comments:      logic.NewCommentLogic(db),
		Payments:      logic.NewPaymentLogic(db, nil, nil),
		Shop:          logic.NewShopLogic(db, nil, notifications, 2),
		Chat:          chatLogic,
		Notifications: notifications,
		Relay:         relay,
	})
	return f
}

func (f *routerFixture) token(t *testing.T, id int64) string {
	t.Helper()
	token, _, err := f.tokens.GenerateToken(id)
	require.NoError(t, err)
	return token
}

func (f *routerFixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestSetup_Routes(t *testing.T) {
	f := newRouterFixture(t)
	userToken := f.token(t, f.user.Id)
	adminToken := f.token(t, f.admin.Id)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"public campaign list", http.MethodGet, "/api/v1/campaigns", "", http.StatusOK},
		{"missing campaign", http.MethodGet, "/api/v1/campaigns/404", "", http.StatusNotFound},
		{"write needs auth", http.MethodPost, "/api/v1/campaigns", "", http.StatusUnauthorized},
		{"admin only", http.MethodGet, "/api/v1/admin/campaigns", userToken, http.StatusForbidden},
		{"admin list", http.MethodGet, "/api/v1/admin/campaigns", adminToken, http.StatusOK},
		{"staff rooms denied", http.MethodGet, "/api/v1/chat/rooms", userToken, http.StatusForbidden},
		{"notifications", http.MethodGet, "/api/v1/notifications", userToken, http.StatusOK},
		{"status choices", http.MethodGet, "/api/v1/payments/status-choices", userToken, http.StatusOK},
		{"shop products", http.MethodGet, "/api/v1/shop/products", "", http.StatusOK},
		{"bad id", http.MethodGet, "/api/v1/campaigns/abc", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(tt.method, tt.path, tt.token, "")
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestSetup_ChatRoomLifecycle(t *testing.T) {
	f := newRouterFixture(t)
	userToken := f.token(t, f.user.Id)

	w := f.do(http.MethodPost, "/api/v1/chat/rooms", userToken, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = f.do(http.MethodPost, "/api/v1/chat/rooms", userToken, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data model.RoomModel `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	roomId := resp.Data.Id
	require.NotZero(t, roomId)

	srv := httptest.NewServer(f.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/" + strconv.FormatInt(roomId, 10) + "?token=" + userToken
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"command": chat.CommandNewMessage, "message": "hello"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame chat.Outbound
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "user@example.com", frame.UserId)
	assert.Equal(t, "hello", frame.Message)

	w = f.do(http.MethodGet, "/api/v1/chat/rooms/"+strconv.FormatInt(roomId, 10)+"/messages", userToken, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hello")
}

func TestSetup_WebsocketRejectsStranger(t *testing.T) {
	f := newRouterFixture(t)
	w := f.do(http.MethodPost, "/api/v1/chat/rooms", f.token(t, f.user.Id), "")
	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Data model.RoomModel `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	path := "/ws/chat/" + strconv.FormatInt(resp.Data.Id, 10)

	stranger := model.UserModel{Email: "stranger@example.com", Username: "stranger"}
	require.NoError(t, f.db.Create(&stranger).Error)

	w = f.do(http.MethodGet, path, f.token(t, stranger.Id), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodGet, path, f.token(t, stranger.Id+100), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
