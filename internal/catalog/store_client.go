package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Doer executes outbound HTTP requests.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// StoreClient implements Repository against a FakeStore compatible REST API.
type StoreClient struct {
	BaseURL string
	HTTP    Doer
}

// ListAll implements Repository.
func (c StoreClient) ListAll(ctx context.Context) ([]RawProduct, error) {
	var out []RawProduct
	if err := c.getJSON(ctx, "/products", &out); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

// GetByID implements Repository.
func (c StoreClient) GetByID(ctx context.Context, id string) (RawProduct, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return RawProduct{}, ErrNotFound
	}
	var out *RawProduct
	if err := c.getJSON(ctx, "/products/"+url.PathEscape(id), &out); err != nil {
		return RawProduct{}, fmt.Errorf("get product %s: %w", id, err)
	}
	if out == nil {
		return RawProduct{}, fmt.Errorf("get product %s: %w", id, ErrNotFound)
	}
	return *out, nil
}

// ListByCategory implements Repository.
func (c StoreClient) ListByCategory(ctx context.Context, category string) ([]RawProduct, error) {
	var out []RawProduct
	if err := c.getJSON(ctx, "/products/category/"+url.PathEscape(category), &out); err != nil {
		return nil, fmt.Errorf("list category %q: %w", category, err)
	}
	return out, nil
}

func (c StoreClient) getJSON(ctx context.Context, path string, dst any) error {
	if c.HTTP == nil {
		return errors.New("catalog: store http client not configured")
	}
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		return errors.New("catalog: store base url not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("store api status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	// The store answers unknown ids with 200 and an empty body.
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("null")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode store response: %w", err)
	}
	return nil
}
