package testserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/henryotoole/hutils/framework"
	"github.com/henryotoole/hutils/misc"
)

// DefaultRequestTimeout is the timeout applied to every request unless overridden.
const DefaultRequestTimeout = time.Second * 10

// maxErrorTextLength is how many characters of a non-200 response body are kept.
const maxErrorTextLength = 1164

// Params is a set of request parameters. Values are stringified with fmt.Sprint before they
// are sent, except booleans, which become "True" or "False". A slice value sends the key once
// per element, and a nil value is omitted.
type Params map[string]interface{}

// Client sends requests to a web application and remembers the session cookies it was given
// at login. It is safe for concurrent use, although the cookie set is shared.
type Client struct {
	// RequestTimeout is the single timeout used for each request.
	RequestTimeout time.Duration

	// BaseURL is prepended to the routes given to SendPostRequest and LoginUser.
	BaseURL string

	// BaseData is merged into the parameters of every SendPostRequest call, replacing any
	// parameter of the same name.
	BaseData Params

	cookies      []*http.Cookie
	lastResponse *http.Response
	httpClient   *http.Client
	logger       framework.Logger
	lock         sync.Mutex
}

// ClientOption configures a Client.
type ClientOption func(*Client)

func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.RequestTimeout = timeout }
}

func WithLogger(logger framework.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithBaseData(data Params) ClientOption {
	return func(c *Client) { c.BaseData = data }
}

// NewClient creates a client for the application at baseURL, for instance
// "http://localhost:5000".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		RequestTimeout: DefaultRequestTimeout,
		BaseURL:        baseURL,
		BaseData:       Params{},
		httpClient:     &http.Client{},
		logger:         framework.NullLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoginUser posts the user's credentials, as the "email" and "password" parameters, to
// loginRoute. The cookies set by that response replace the client's cookies and are sent
// with every later request, so the client appears logged in.
//
// The status of the login response is not checked; a failed login simply leaves the client
// without a session.
func (c *Client) LoginUser(loginRoute, userEmail, userPass string) error {
	resp, _, err := c.post(c.BaseURL+loginRoute, Params{"email": userEmail, "password": userPass}, nil)
	if err != nil {
		return err
	}
	cookies := resp.Cookies()
	count := len(cookies)
	c.SetCookies(cookies)
	c.logger.Printf("Logged in as %s at %s, got %d cookie(s)", userEmail, loginRoute, count)
	return nil
}

// Cookies returns the cookies currently sent with every request.
func (c *Client) Cookies() []*http.Cookie {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]*http.Cookie(nil), c.cookies...)
}

// SetCookies replaces the cookies sent with every request.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.lock.Lock()
	c.cookies = append([]*http.Cookie(nil), cookies...)
	c.lock.Unlock()
}

// LastResponse returns the most recent response. Its body has already been consumed.
func (c *Client) LastResponse() *http.Response {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.lastResponse
}

// SendPostRequest posts data, plus BaseData, to route, attaching each of filePaths as the
// multipart file field "0", "1" and so on.
//
// success is true only for a 200 response. In that case ret is the decoded JSON body (nil
// if the body was not JSON); otherwise ret is the int status code.
func (c *Client) SendPostRequest(route string, data Params, filePaths []string) (success bool, ret interface{}, err error) {
	dataCopy, err := copyParams(data)
	if err != nil {
		return false, nil, err
	}
	for k, v := range c.BaseData {
		dataCopy[k] = v
	}

	files := make(map[string]string, len(filePaths))
	for i, path := range filePaths {
		files[strconv.Itoa(i)] = path
	}

	code, body, err := c.GetJSON(c.BaseURL+route, dataCopy, files)
	if err != nil {
		return false, nil, err
	}
	if code == http.StatusOK {
		return true, body, nil
	}
	return false, code, nil
}

// GetJSON posts data to an absolute url, along with files (a map of form field name to file
// path), and returns the status code and response.
//
// For a 200 response, body is the decoded JSON, or nil if the response was not valid JSON.
// For any other status, body is the response text, truncated to 1164 characters.
// A transport failure, including a timeout, is returned as err.
func (c *Client) GetJSON(url string, data Params, files map[string]string) (code int, body interface{}, err error) {
	resp, respData, err := c.post(url, data, files)
	if err != nil {
		return 0, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, truncate(string(respData), maxErrorTextLength), nil
	}
	var decoded interface{}
	if err := json.Unmarshal(respData, &decoded); err != nil {
		return http.StatusOK, nil, nil
	}
	return http.StatusOK, decoded, nil
}

// post sends one request and returns the response with its body already read.
func (c *Client) post(url string, data Params, files map[string]string) (*http.Response, []byte, error) {
	reqBody, contentType, err := encodeRequestBody(data, files)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.RequestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reqBody)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", contentType)
	for _, cookie := range c.Cookies() {
		req.AddCookie(cookie)
	}

	c.logger.Printf("POST %s", url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	respData, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("error reading response from %s: %w", url, err)
	}
	c.lock.Lock()
	c.lastResponse = resp
	c.lock.Unlock()
	c.logger.Printf("Got status %d from %s", resp.StatusCode, url)
	return resp, respData, nil
}

// Close releases idle connections held by the client.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// copyParams deep-copies data through JSON so that the caller's map is never modified.
// Numbers are kept as json.Number so they are sent exactly as written.
func copyParams(data Params) (Params, error) {
	ret := Params{}
	if data == nil {
		return ret, nil
	}
	raw, err := json.Marshal(misc.StripUnicode(map[string]interface{}(data)))
	if err != nil {
		return nil, fmt.Errorf("request parameters are not serializable: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func (p Params) formValues() url.Values {
	values := url.Values{}
	for k, v := range p {
		switch vv := v.(type) {
		case nil:
		case []interface{}:
			for _, item := range vv {
				values.Add(k, formValue(item))
			}
		case []string:
			for _, item := range vv {
				values.Add(k, item)
			}
		default:
			values.Add(k, formValue(vv))
		}
	}
	return values
}

// formValue stringifies one parameter. Booleans are sent as "True" and "False", which is
// what Python-based web frameworks produce and compare against.
func formValue(v interface{}) string {
	if b, ok := v.(bool); ok {
		if b {
			return "True"
		}
		return "False"
	}
	return fmt.Sprint(v)
}

func encodeRequestBody(data Params, files map[string]string) (io.Reader, string, error) {
	values := data.formValues()
	if len(files) == 0 {
		return bytes.NewBufferString(values.Encode()), "application/x-www-form-urlencoded", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, vs := range values {
		for _, v := range vs {
			if err := w.WriteField(k, v); err != nil {
				return nil, "", err
			}
		}
	}
	fields := make([]string, 0, len(files))
	for field := range files {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		if err := writeFile(w, field, files[field]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open file for upload: %w", err)
	}
	defer f.Close()
	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

func truncate(s string, maxChars int) string {
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}
