package convapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"convcli/internal/domain/job"
)

// SupportedDecision answers whether a source/target format pair converts.
type SupportedDecision struct {
	Supported bool   `json:"supported"`
	Reason    string `json:"reason,omitempty"`
}

// ListFormats returns every format the server knows. Catalog queries carry no
// job semantics and need no token.
func (c *Client) ListFormats(ctx context.Context) ([]string, error) {
	var out struct {
		Formats []string `json:"formats"`
	}
	if err := c.getJSON(ctx, "list formats", "/v2/formats", &out); err != nil {
		return nil, err
	}
	return out.Formats, nil
}

// ListConversionsFrom returns the target formats reachable from the given
// source format.
func (c *Client) ListConversionsFrom(ctx context.Context, from string) ([]string, error) {
	var out struct {
		Targets []string `json:"targets"`
	}
	path := "/v2/formats/" + url.PathEscape(from)
	if err := c.getJSON(ctx, "list conversions", path, &out); err != nil {
		return nil, err
	}
	return out.Targets, nil
}

// CheckConversion asks whether from→to is a supported pair.
func (c *Client) CheckConversion(ctx context.Context, from, to string) (SupportedDecision, error) {
	var out SupportedDecision
	path := "/v2/formats/" + url.PathEscape(from) + "/" + url.PathEscape(to)
	if err := c.getJSON(ctx, "check conversion", path, &out); err != nil {
		return SupportedDecision{}, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	resp, err := c.do(ctx, op, http.MethodGet, path, "", "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &job.MalformedResponseError{Reason: fmt.Sprintf("%s: decode response: %v", op, err)}
	}
	return nil
}
