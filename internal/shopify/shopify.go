package shopify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Shop domains are strict subdomains of myshopify.com: alphanumeric with
// internal hyphens, bounded length. Anything else is rejected before an
// authorize URL is ever built from it.
var shopDomainPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*\.myshopify\.com$`)

const maxShopDomainLength = 100

func ValidShopDomain(domain string) bool {
	if len(domain) == 0 || len(domain) > maxShopDomainLength {
		return false
	}
	return shopDomainPattern.MatchString(domain)
}

// VerifyHMAC recomputes the callback signature over every query
// parameter except hmac itself, sorted by key, and compares in constant
// time against the supplied value.
func VerifyHMAC(query url.Values, secret string) bool {
	supplied := query.Get("hmac")
	if supplied == "" {
		return false
	}

	keys := make([]string, 0, len(query))
	for k := range query {
		if k == "hmac" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+strings.Join(query[k], ","))
	}
	message := strings.Join(pairs, "&")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	expected := hex.EncodeToString(mac.Sum(nil))

	suppliedBytes, err := hex.DecodeString(supplied)
	if err != nil {
		return false
	}
	expectedBytes, _ := hex.DecodeString(expected)
	return hmac.Equal(suppliedBytes, expectedBytes)
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
}

type ShopInfo struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Currency string `json:"currency"`
	Timezone string `json:"iana_timezone"`
}

// Client is the marketplace provider surface the OAuth handshake needs.
type Client interface {
	AuthorizeURL(shop, state string) string
	ExchangeCode(ctx context.Context, shop, code string) (*TokenResponse, error)
	GetShopInfo(ctx context.Context, shop, accessToken string) (*ShopInfo, error)
}

type HTTPClient struct {
	apiKey      string
	apiSecret   string
	scopes      string
	redirectURL string
	httpClient  *http.Client
}

func NewHTTPClient(apiKey, apiSecret, scopes, redirectURL string) *HTTPClient {
	return &HTTPClient{
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		scopes:      scopes,
		redirectURL: redirectURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPClient) AuthorizeURL(shop, state string) string {
	q := url.Values{}
	q.Set("client_id", c.apiKey)
	q.Set("scope", c.scopes)
	q.Set("redirect_uri", c.redirectURL)
	q.Set("state", state)
	return fmt.Sprintf("https://%s/admin/oauth/authorize?%s", shop, q.Encode())
}

func (c *HTTPClient) ExchangeCode(ctx context.Context, shop, code string) (*TokenResponse, error) {
	body, err := json.Marshal(map[string]string{
		"client_id":     c.apiKey,
		"client_secret": c.apiSecret,
		"code":          code,
	})
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("https://%s/admin/oauth/access_token", shop)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		// Provider error bodies are deliberately not propagated.
		return nil, fmt.Errorf("token exchange status: %d", resp.StatusCode)
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token exchange returned empty token")
	}
	return &token, nil
}

func (c *HTTPClient) GetShopInfo(ctx context.Context, shop, accessToken string) (*ShopInfo, error) {
	endpoint := fmt.Sprintf("https://%s/admin/api/2024-01/shop.json", shop)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Shopify-Access-Token", accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shop info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shop info status: %d", resp.StatusCode)
	}

	var payload struct {
		Shop ShopInfo `json:"shop"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode shop info: %w", err)
	}
	return &payload.Shop, nil
}
