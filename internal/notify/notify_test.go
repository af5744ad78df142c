package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	path, chatID, text string
}

// newBotAPI fakes the sendMessage method of the Bot API.
func newBotAPI(t *testing.T, status int) (*httptest.Server, func() []sent) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var mu sync.Mutex
	var got []sent
	r := gin.New()
	r.POST("/:bot/sendMessage", func(c *gin.Context) {
		mu.Lock()
		got = append(got, sent{path: c.Request.URL.Path, chatID: c.PostForm("chat_id"), text: c.PostForm("text")})
		mu.Unlock()
		if status != http.StatusOK {
			c.JSON(status, gin.H{"ok": false, "error_code": status, "description": "Bad Request: chat not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "result": gin.H{
			"message_id": 1, "date": 0, "chat": gin.H{"id": 42, "type": "private"}, "text": c.PostForm("text"),
		}})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, func() []sent {
		mu.Lock()
		defer mu.Unlock()
		return append([]sent(nil), got...)
	}
}

func TestTelegram_Notify(t *testing.T) {
	srv, got := newBotAPI(t, http.StatusOK)

	tg, err := NewTelegram("123:abc", 42, WithServerURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	require.NoError(t, tg.Notify(context.Background(), "sync failed: RateLimited"))

	calls := got()
	require.Len(t, calls, 1)
	assert.Equal(t, "/bot123:abc/sendMessage", calls[0].path)
	assert.Equal(t, "42", calls[0].chatID)
	assert.Equal(t, "sync failed: RateLimited", calls[0].text)
}

func TestTelegram_NotifyEmptyIsNoop(t *testing.T) {
	srv, got := newBotAPI(t, http.StatusOK)
	tg, err := NewTelegram("123:abc", 42, WithServerURL(srv.URL))
	require.NoError(t, err)

	require.NoError(t, tg.Notify(context.Background(), ""))
	assert.Empty(t, got())
}

func TestTelegram_NotifyError(t *testing.T) {
	srv, _ := newBotAPI(t, http.StatusBadRequest)
	tg, err := NewTelegram("123:abc", 42, WithServerURL(srv.URL))
	require.NoError(t, err)

	err = tg.Notify(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notify:")
}

func TestNewTelegram_Validation(t *testing.T) {
	_, err := NewTelegram("", 42)
	assert.Error(t, err)
	_, err = NewTelegram("123:abc", 0)
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))

	long := strings.Repeat("я", MaxMessageRunes+10)
	cut := truncate(long, MaxMessageRunes)
	assert.Equal(t, MaxMessageRunes, utf8.RuneCountInString(cut))
	assert.True(t, strings.HasSuffix(cut, "…"))
}

func TestThrottled(t *testing.T) {
	var got []string
	inner := Func(func(_ context.Context, text string) error {
		got = append(got, text)
		return nil
	})
	th := NewThrottled(inner, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	th.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, th.Notify(ctx, "a"))
	require.NoError(t, th.Notify(ctx, "a"))
	require.NoError(t, th.Notify(ctx, "b"))

	now = now.Add(time.Minute)
	require.NoError(t, th.Notify(ctx, "a"))

	assert.Equal(t, []string{"a", "b", "a"}, got)
}

func TestThrottled_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	th := NewThrottled(Func(func(context.Context, string) error { return boom }), time.Minute)
	assert.ErrorIs(t, th.Notify(context.Background(), "x"), boom)
}

func TestNop(t *testing.T) {
	var n Notifier = Nop{}
	assert.NoError(t, n.Notify(context.Background(), "ignored"))
}
