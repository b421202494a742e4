// Package currency resolves symbolic asset names to the concrete denoms
// stakes are held in. Resolution happens at bootstrap and on authority
// config updates only; the booking and resolution paths never touch it.
package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrUnknownAsset is returned when the registry has no entry for a symbol.
var ErrUnknownAsset = errors.New("unknown asset")

// ErrNonNativeAsset is returned when a symbol resolves to an asset that is
// not natively transferable. Stakes must be denominated in a native unit.
var ErrNonNativeAsset = errors.New("non-native asset not supported")

// StaticResolver resolves symbols from a fixed table. It backs tests and
// deployments without an asset registry.
type StaticResolver struct {
	assets map[string]string
}

// NewStaticResolver copies the given symbol -> denom table.
func NewStaticResolver(assets map[string]string) *StaticResolver {
	m := make(map[string]string, len(assets))
	for k, v := range assets {
		m[k] = v
	}
	return &StaticResolver{assets: m}
}

func (r *StaticResolver) Resolve(_ context.Context, symbol string) (string, error) {
	denom, ok := r.assets[symbol]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
	}
	return denom, nil
}

// RegistryClient resolves symbols against an HTTP asset registry. The
// registry answers GET {base}/assets/{symbol} with a JSON document carrying
// the concrete denom and whether the asset is natively transferable.
type RegistryClient struct {
	baseURL string
	client  *http.Client
}

// NewRegistryClient builds a client for the registry at baseURL.
func NewRegistryClient(baseURL string) *RegistryClient {
	return &RegistryClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type assetResponse struct {
	Symbol string `json:"symbol"`
	Denom  string `json:"denom"`
	Native bool   `json:"native"`
}

// Resolve looks the symbol up in the registry. Symbols the registry does not
// know yield ErrUnknownAsset; assets that are not native yield
// ErrNonNativeAsset.
func (r *RegistryClient) Resolve(ctx context.Context, symbol string) (string, error) {
	endpoint := fmt.Sprintf("%s/assets/%s", r.baseURL, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("asset registry request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("asset registry returned status %d", resp.StatusCode)
	}

	var body assetResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode asset registry response: %w", err)
	}
	if !body.Native {
		return "", fmt.Errorf("%w: %s", ErrNonNativeAsset, symbol)
	}
	if body.Denom == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
	}
	return body.Denom, nil
}
