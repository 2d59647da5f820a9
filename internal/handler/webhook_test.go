package handler

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/wxgate/internal/wechat"
	"github.com/tokmz/wxgate/pkg/logger"
)

const (
	testToken      = "test_token"
	testAESKeyB64  = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY"
	testAuthURL    = "https://example.com/auth"
	testRedirectTo = "https://mp.weixin.qq.com/"
)

type memUserStore struct {
	mu      sync.Mutex
	users   map[string]int64
	created []string
}

func (s *memUserStore) FindByOpenID(ctx context.Context, openID string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.users[openID]
	return id, ok, nil
}

func (s *memUserStore) Create(ctx context.Context, openID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := int64(len(s.users) + 1)
	s.users[openID] = id
	s.created = append(s.created, openID)
	return id, nil
}

type recordNotifier struct {
	mu   sync.Mutex
	sent []int
}

func (n *recordNotifier) TrySend(id int, v any) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, id)
	return true, nil
}

func (n *recordNotifier) sentIDs() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int(nil), n.sent...)
}

type webhookFixture struct {
	handler  *WebhookHandler
	engine   *gin.Engine
	users    *memUserStore
	notifier *recordNotifier
	aesKey   wechat.EncodingAESKey
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.NewWithOptions(logger.WithLevel(logger.ErrorLevel), logger.WithConsoleOutput())
	require.NoError(t, err)

	aesKey, err := wechat.ParseEncodingAESKey(testAESKeyB64)
	require.NoError(t, err)

	client := wechat.NewClient(wechat.ClientConfig{
		AppID:     "wx_app",
		AppSecret: "secret",
		Token:     testToken,
		AESKey:    aesKey,
	}, nil, log)

	users := &memUserStore{users: map[string]int64{}}
	notifier := &recordNotifier{}
	router := wechat.NewEventRouter(users, notifier, testAuthURL, log)

	h := NewWebhookHandler(client, router, testRedirectTo, log)

	engine := gin.New()
	portal := engine.Group("/wx/portal/public")
	portal.GET("", h.EchoStr)
	portal.POST("", h.Post)
	portal.GET("/callBack", h.CallBack)

	return &webhookFixture{handler: h, engine: engine, users: users, notifier: notifier, aesKey: aesKey}
}

func signedQuery(extra map[string]string) string {
	ts := "1700000000"
	nonce := "nonce123"
	q := url.Values{}
	q.Set("signature", wechat.Signature(testToken, ts, nonce))
	q.Set("timestamp", ts)
	q.Set("nonce", nonce)
	for k, v := range extra {
		q.Set(k, v)
	}
	return q.Encode()
}

func TestEchoStr(t *testing.T) {
	f := newWebhookFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/wx/portal/public?"+signedQuery(map[string]string{"echostr": "hello"}), nil)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", w.Body.String())
}

func TestEchoStrBadSignature(t *testing.T) {
	f := newWebhookFixture(t)

	req := httptest.NewRequest(http.MethodGet,
		"/wx/portal/public?signature=bad&timestamp=1&nonce=2&echostr=hello", nil)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestEchoStrMissingParam(t *testing.T) {
	f := newWebhookFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/wx/portal/public?"+signedQuery(nil), nil)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallBackRedirect(t *testing.T) {
	f := newWebhookFixture(t)

	req := httptest.NewRequest(http.MethodGet,
		"/wx/portal/public/callBack?"+signedQuery(map[string]string{"code": "oauth_code"}), nil)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, testRedirectTo, w.Header().Get("Location"))
}

func postXML(t *testing.T, f *webhookFixture, query, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/wx/portal/public?"+query, strings.NewReader(body))
	req.Header.Set("Content-Type", "text/xml")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestPostPlainTextMessage(t *testing.T) {
	f := newWebhookFixture(t)

	body := `<xml><ToUserName>gh</ToUserName><FromUserName>o_user</FromUserName><CreateTime>1</CreateTime><MsgType>text</MsgType><Content>hi</Content></xml>`
	w := postXML(t, f, signedQuery(map[string]string{"openid": "o_user"}), body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestPostScanEventRepliesAndNotifies(t *testing.T) {
	f := newWebhookFixture(t)

	body := `<xml><ToUserName>gh</ToUserName><FromUserName>o_new</FromUserName><CreateTime>1</CreateTime><MsgType>event</MsgType><Event>subscribe</Event><EventKey>qrscene_3</EventKey><Ticket>tk</Ticket></xml>`
	w := postXML(t, f, signedQuery(map[string]string{"openid": "o_new"}), body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<MsgType>text</MsgType>")
	assert.Contains(t, w.Body.String(), testAuthURL)
	assert.Equal(t, []string{"o_new"}, f.users.created)

	require.Eventually(t, func() bool {
		ids := f.notifier.sentIDs()
		return len(ids) == 1 && ids[0] == 3
	}, time.Second, 10*time.Millisecond)
}

func TestPostBadSceneKey(t *testing.T) {
	f := newWebhookFixture(t)

	body := `<xml><ToUserName>gh</ToUserName><FromUserName>o</FromUserName><CreateTime>1</CreateTime><MsgType>event</MsgType><Event>SCAN</Event><EventKey>qrscene_abc</EventKey><Ticket>tk</Ticket></xml>`
	w := postXML(t, f, signedQuery(map[string]string{"openid": "o"}), body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostMalformedXML(t *testing.T) {
	f := newWebhookFixture(t)

	w := postXML(t, f, signedQuery(map[string]string{"openid": "o"}), "not xml at all <")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostUnsupportedEncryptType(t *testing.T) {
	f := newWebhookFixture(t)

	w := postXML(t, f, signedQuery(map[string]string{"openid": "o", "encrypt_type": "sm4"}), "<xml/>")
	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Contains(t, w.Body.String(), "sm4")
}

// encryptBody 按协议组包加密，供 AES 分支测试
func encryptBody(t *testing.T, key wechat.EncodingAESKey, xmlBody, appID string) string {
	t.Helper()

	plain := bytes.Repeat([]byte{0x11}, 16)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(xmlBody)))
	plain = append(plain, lenBuf[:]...)
	plain = append(plain, xmlBody...)
	plain = append(plain, appID...)

	pad := 32 - len(plain)%32
	plain = append(plain, bytes.Repeat([]byte{byte(pad)}, pad)...)

	block, err := aes.NewCipher(key[:])
	require.NoError(t, err)
	ct := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, key[:aes.BlockSize]).CryptBlocks(ct, plain)
	return base64.StdEncoding.EncodeToString(ct)
}

func TestPostEncryptedScanEvent(t *testing.T) {
	f := newWebhookFixture(t)

	inner := `<xml><ToUserName>gh</ToUserName><FromUserName>o_enc</FromUserName><CreateTime>1</CreateTime><MsgType>event</MsgType><Event>SCAN</Event><EventKey>5</EventKey><Ticket>tk</Ticket></xml>`
	envelope := `<xml><ToUserName><![CDATA[gh]]></ToUserName><Encrypt><![CDATA[` +
		encryptBody(t, f.aesKey, inner, "wx_app") + `]]></Encrypt></xml>`

	w := postXML(t, f, signedQuery(map[string]string{"openid": "o_enc", "encrypt_type": "aes"}), envelope)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), testAuthURL)

	require.Eventually(t, func() bool {
		ids := f.notifier.sentIDs()
		return len(ids) == 1 && ids[0] == 5
	}, time.Second, 10*time.Millisecond)
}
