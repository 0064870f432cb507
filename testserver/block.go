package testserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/henryotoole/hutils/misc"
)

// RouteTestBlock describes a POST request to one route and the response it should produce.
type RouteTestBlock struct {
	// Route is the path from the server root, like "/my_api/get_data".
	Route string

	// DesiredCode is the expected status code. Only 200 versus not-200 is distinguished: a
	// block that wants 404 passes for any non-200 response.
	DesiredCode int

	// DesiredData is the expected JSON body of a 200 response. If nil, the body is not checked.
	DesiredData interface{}

	// RequestData is sent as request parameters.
	RequestData Params

	// FilePaths are uploaded with the request.
	FilePaths []string
}

func (b RouteTestBlock) RouteName() string {
	return b.Route
}

func (b RouteTestBlock) String() string {
	return "App Route Test Block:  https://etc" + b.Route + "?" + fmt.Sprint(b.RequestData) +
		" --> (" + strconv.Itoa(b.DesiredCode) + "," + fmt.Sprint(b.DesiredData) + ")"
}

// BlockFailure is returned by Client.AssertBlock when the response does not match the block.
type BlockFailure struct {
	Route   string
	Message string
}

func (f *BlockFailure) Error() string {
	return f.Message
}

func wrongCode(b RouteTestBlock, got interface{}) *BlockFailure {
	return &BlockFailure{
		Route: b.Route,
		Message: fmt.Sprintf("Wrong return code for route '%s': wants (%d), got (%v)",
			b.RouteName(), b.DesiredCode, got),
	}
}

// AssertBlock sends the block's request and checks the response against it. It returns a
// *BlockFailure if the response is wrong, or another error if the request could not be made.
func (c *Client) AssertBlock(block RouteTestBlock) error {
	success, ret, err := c.SendPostRequest(block.Route, block.RequestData, block.FilePaths)
	if err != nil {
		return fmt.Errorf("request to route '%s' failed: %w", block.RouteName(), err)
	}

	if !success {
		if block.DesiredCode == http.StatusOK {
			return wrongCode(block, ret)
		}
		return nil
	}
	if block.DesiredCode != http.StatusOK {
		return wrongCode(block, ret)
	}
	if block.DesiredData == nil {
		return nil
	}
	desired, err := asDecodedJSON(misc.StripUnicode(block.DesiredData))
	if err != nil {
		return fmt.Errorf("desired data for route '%s' is not valid JSON data: %w", block.RouteName(), err)
	}
	if !cmp.Equal(desired, ret) {
		return &BlockFailure{
			Route: block.Route,
			Message: fmt.Sprintf("Wrong return data for route '%s' (200): wants (%v), got (%v)",
				block.RouteName(), desired, ret),
		}
	}
	return nil
}

// RequireBlock is AssertBlock for use with testify: any failure ends the test through
// t.FailNow. t can be a *testing.T or a *framework.Context.
func (c *Client) RequireBlock(t require.TestingT, block RouteTestBlock) {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	require.NoError(t, c.AssertBlock(block), "%s", block)
}

// asDecodedJSON converts v to the representation json.Unmarshal would produce for it, so
// that, for instance, the int 1 compares equal to a decoded float64 1.
func asDecodedJSON(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var ret interface{}
	if err := json.Unmarshal(data, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}
