package testserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSONDecodesBodyOf200(t *testing.T) {
	handler := httphelpers.HandlerWithJSONResponse(map[string]interface{}{"a": []int{1, 2}}, nil)
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c := NewClient(server.URL)
		code, body, err := c.GetJSON(server.URL+"/x", Params{"q": "1"}, nil)
		require.NoError(t, err)
		assert.Equal(t, 200, code)
		assert.Equal(t, map[string]interface{}{"a": []interface{}{float64(1), float64(2)}}, body)
	})
}

func TestGetJSONReturnsNilForNonJSON200(t *testing.T) {
	handler := httphelpers.HandlerWithResponse(200, nil, []byte("<html>not json</html>"))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		code, body, err := NewClient(server.URL).GetJSON(server.URL, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 200, code)
		assert.Nil(t, body)
	})
}

func TestGetJSONTruncatesErrorText(t *testing.T) {
	long := strings.Repeat("é", maxErrorTextLength+50)
	handler := httphelpers.HandlerWithResponse(500, nil, []byte(long))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		code, body, err := NewClient(server.URL).GetJSON(server.URL, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 500, code)
		assert.Equal(t, strings.Repeat("é", maxErrorTextLength), body)
	})
}

func TestGetJSONTimesOut(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second * 2):
		case <-r.Context().Done():
		}
	})
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c := NewClient(server.URL, WithRequestTimeout(time.Millisecond*50))
		_, _, err := c.GetJSON(server.URL, nil, nil)
		assert.Error(t, err)
	})
}

func TestSendPostRequestMergesBaseDataAndEncodesForm(t *testing.T) {
	handler, requests := httphelpers.RecordingHandler(httphelpers.HandlerWithJSONResponse(map[string]string{}, nil))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c := NewClient(server.URL, WithBaseData(Params{"api_key": "k", "shared": "base"}))
		data := Params{"shared": "mine", "n": 12345678, "multi": []string{"a", "b"}, "skip": nil}

		success, ret, err := c.SendPostRequest("/route", data, nil)
		require.NoError(t, err)
		assert.True(t, success)
		assert.Equal(t, map[string]interface{}{}, ret)
		assert.Equal(t, Params{"shared": "mine", "n": 12345678, "multi": []string{"a", "b"}, "skip": nil}, data,
			"caller's data should not be modified")

		r := <-requests
		assert.Equal(t, "POST", r.Request.Method)
		assert.Equal(t, "/route", r.Request.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Request.Header.Get("Content-Type"))
		assert.Equal(t, "api_key=k&multi=a&multi=b&n=12345678&shared=base", string(r.Body))
	})
}

func TestSendPostRequestSendsBooleansCapitalized(t *testing.T) {
	handler, requests := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(200))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c := NewClient(server.URL)
		_, _, err := c.SendPostRequest("/route", Params{"on": true, "off": false, "list": []interface{}{true, 2}}, nil)
		require.NoError(t, err)

		r := <-requests
		assert.Equal(t, "list=True&list=2&off=False&on=True", string(r.Body))
	})
}

func TestFormValue(t *testing.T) {
	assert.Equal(t, "True", formValue(true))
	assert.Equal(t, "False", formValue(false))
	assert.Equal(t, "1.5", formValue(1.5))
	assert.Equal(t, "x", formValue("x"))
}

func TestSendPostRequestReturnsCodeOnFailure(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(404), func(server *httptest.Server) {
		success, ret, err := NewClient(server.URL).SendPostRequest("/missing", nil, nil)
		require.NoError(t, err)
		assert.False(t, success)
		assert.Equal(t, 404, ret)
	})
}

func TestSendPostRequestUploadsFiles(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i, content := range []string{"first file", "second file"} {
		p := filepath.Join(dir, []string{"a.txt", "b.txt"}[i])
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
		paths = append(paths, p)
	}

	received := make(map[string]string)
	var fieldValue string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		fieldValue = r.FormValue("field")
		for name, headers := range r.MultipartForm.File {
			f, err := headers[0].Open()
			require.NoError(t, err)
			data, _ := io.ReadAll(f)
			f.Close()
			received[name+":"+headers[0].Filename] = string(data)
		}
		w.WriteHeader(200)
	})
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		success, _, err := NewClient(server.URL).SendPostRequest("/upload", Params{"field": "v"}, paths)
		require.NoError(t, err)
		assert.True(t, success)
	})
	assert.Equal(t, "v", fieldValue)
	assert.Equal(t, map[string]string{"0:a.txt": "first file", "1:b.txt": "second file"}, received)
}

func TestSendPostRequestWithMissingFile(t *testing.T) {
	c := NewClient("http://localhost:1")
	_, _, err := c.SendPostRequest("/upload", nil, []string{filepath.Join(t.TempDir(), "nope")})
	assert.Error(t, err)
}

func TestLoginUserKeepsCookiesFromLoginResponse(t *testing.T) {
	var lastCookie string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			assert.Equal(t, "me@example.com", r.FormValue("email"))
			assert.Equal(t, "secret", r.FormValue("password"))
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
			w.WriteHeader(200)
			return
		}
		lastCookie = r.Header.Get("Cookie")
		w.WriteHeader(200)
	})
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c := NewClient(server.URL)
		require.NoError(t, c.LoginUser("/login", "me@example.com", "secret"))
		require.Len(t, c.Cookies(), 1)

		_, _, err := c.SendPostRequest("/other", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "session=abc", lastCookie)
		assert.Equal(t, 200, c.LastResponse().StatusCode)
	})
}

func TestLoginUserIgnoresConcurrentResponses(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
		} else {
			http.SetCookie(w, &http.Cookie{Name: "other", Value: "xyz"})
		}
		w.WriteHeader(200)
	})
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c := NewClient(server.URL)
		stop := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
						_, _, _ = c.SendPostRequest("/other", nil, nil)
					}
				}
			}()
		}
		for i := 0; i < 20; i++ {
			require.NoError(t, c.LoginUser("/login", "me@example.com", "secret"))
			cookies := c.Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, "session", cookies[0].Name)
		}
		close(stop)
		wg.Wait()
	})
}

func TestLoginUserTransportError(t *testing.T) {
	c := NewClient("http://" + freeAddr(t))
	assert.Error(t, c.LoginUser("/login", "a", "b"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "", truncate("abc", 0))
	assert.Equal(t, "日本", truncate("日本語", 2))
}
