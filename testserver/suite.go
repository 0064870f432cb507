package testserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
	"gopkg.in/yaml.v3"

	"github.com/henryotoole/hutils/framework"
	"github.com/henryotoole/hutils/misc"
)

// RunBlocks checks each block against the application as a separate named test. Tests are
// named by route; a route that appears more than once gets a "#n" suffix from its second
// appearance on.
func RunBlocks(
	client *Client,
	blocks []RouteTestBlock,
	filter framework.Filter,
	testLogger framework.TestLogger,
) framework.Results {
	return framework.Run(filter, testLogger, func(c *framework.Context) {
		seen := make(map[string]int)
		for _, block := range blocks {
			name := block.RouteName()
			seen[name]++
			if seen[name] > 1 {
				name = fmt.Sprintf("%s #%d", name, seen[name])
			}
			block := block
			c.Run(name, func(c *framework.Context) {
				c.Debug("%s", block)
				client.RequireBlock(c, block)
				if resp := client.LastResponse(); resp != nil {
					c.Debug("response status %d", resp.StatusCode)
				}
			})
		}
	})
}

type blockSpec struct {
	Route string              `json:"route"`
	Code  ldvalue.OptionalInt `json:"code"`
	Data  interface{}         `json:"data"`
	Param Params              `json:"params"`
	Files []string            `json:"files"`
}

// LoadBlocks reads route test blocks from a YAML (or JSON) file containing a list such as:
//
//	- route: /test_route
//	  code: 200
//	  data: {key: val}
//	  params: {test_param: hello}
//	- route: /upload
//	  files: [fixtures/a.png]
//
// code defaults to 200. Relative file paths are resolved against the file's directory.
func LoadBlocks(path string) ([]RouteTestBlock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read blocks file: %w", err)
	}
	blocks, err := ParseBlocks(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range blocks {
		for j, f := range blocks[i].FilePaths {
			if !filepath.IsAbs(f) {
				blocks[i].FilePaths[j] = filepath.Join(dir, f)
			}
		}
	}
	return blocks, nil
}

// ParseBlocks decodes a list of blocks in the format described by LoadBlocks.
func ParseBlocks(data []byte) ([]RouteTestBlock, error) {
	var doc []interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed blocks file: %w", err)
	}
	// Round-trip through JSON so that the JSON forms of the field types apply.
	raw, err := json.Marshal(misc.StripUnicode(doc))
	if err != nil {
		return nil, fmt.Errorf("malformed blocks file: %w", err)
	}
	var specs []blockSpec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("malformed blocks file: %w", err)
	}

	blocks := make([]RouteTestBlock, 0, len(specs))
	for i, s := range specs {
		if s.Route == "" {
			return nil, fmt.Errorf("block %d has no route", i+1)
		}
		blocks = append(blocks, RouteTestBlock{
			Route:       s.Route,
			DesiredCode: s.Code.OrElse(http.StatusOK),
			DesiredData: s.Data,
			RequestData: s.Param,
			FilePaths:   s.Files,
		})
	}
	return blocks, nil
}
