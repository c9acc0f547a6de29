package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/shopiq/shopiq-backend/internal/domain"
	"github.com/shopiq/shopiq-backend/internal/repository"
	"github.com/shopiq/shopiq-backend/internal/shopify"
)

const testAPISecret = "shpss_test_secret"

type fakeShopifyClient struct {
	exchangeErr error
	infoErr     error

	exchangedShop string
	exchangedCode string
}

func (c *fakeShopifyClient) AuthorizeURL(shop, state string) string {
	return "https://" + shop + "/admin/oauth/authorize?state=" + state
}

func (c *fakeShopifyClient) ExchangeCode(_ context.Context, shop, code string) (*shopify.TokenResponse, error) {
	if c.exchangeErr != nil {
		return nil, c.exchangeErr
	}
	c.exchangedShop = shop
	c.exchangedCode = code
	return &shopify.TokenResponse{AccessToken: "shpat_test_token", Scope: "read_products"}, nil
}

func (c *fakeShopifyClient) GetShopInfo(_ context.Context, shop, accessToken string) (*shopify.ShopInfo, error) {
	if c.infoErr != nil {
		return nil, c.infoErr
	}
	return &shopify.ShopInfo{ID: 1, Name: "Acme", Email: "owner@acme.test", Currency: "USD", Timezone: "America/New_York"}, nil
}

type fakeStoreRepo struct {
	repository.StoreRepository
	upserted  *domain.Store
	upsertErr error
}

func (r *fakeStoreRepo) UpsertByDomain(store *domain.Store) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	store.ID = 1
	r.upserted = store
	return nil
}

// signQuery attaches a valid hmac parameter the way the provider does:
// sorted k=v pairs joined by &, HMAC-SHA256, hex.
func signQuery(q url.Values, secret string) {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+strings.Join(q[k], ","))
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	q.Set("hmac", hex.EncodeToString(mac.Sum(nil)))
}

func callbackQuery(shop, code, state string) url.Values {
	q := url.Values{}
	q.Set("shop", shop)
	q.Set("code", code)
	q.Set("state", state)
	q.Set("timestamp", "1700000000")
	signQuery(q, testAPISecret)
	return q
}

func TestBeginConnect(t *testing.T) {
	svc := NewOAuthService(&fakeShopifyClient{}, &fakeStoreRepo{}, testAPISecret)

	authorizeURL, nonce, oerr := svc.BeginConnect("acme.myshopify.com")
	if oerr != nil {
		t.Fatalf("BeginConnect: %v", oerr)
	}
	if len(nonce) != 32 {
		t.Fatalf("nonce length %d, want 32", len(nonce))
	}
	if !strings.Contains(authorizeURL, "state="+nonce) {
		t.Fatalf("authorize URL %q missing nonce", authorizeURL)
	}
}

func TestBeginConnectRejectsBadDomain(t *testing.T) {
	svc := NewOAuthService(&fakeShopifyClient{}, &fakeStoreRepo{}, testAPISecret)

	for _, shop := range []string{"", "evil.com", "acme.myshopify.com.evil.com", "-bad.myshopify.com"} {
		if _, _, oerr := svc.BeginConnect(shop); oerr == nil || oerr.Code != OAuthErrInvalidDomain {
			t.Fatalf("shop %q: expected invalid_domain, got %v", shop, oerr)
		}
	}
}

func TestHandleCallback(t *testing.T) {
	client := &fakeShopifyClient{}
	stores := &fakeStoreRepo{}
	svc := NewOAuthService(client, stores, testAPISecret)
	userID := uint(9)

	store, oerr := svc.HandleCallback(context.Background(), callbackQuery("acme.myshopify.com", "authcode", "nonce123"), "nonce123", &userID)
	if oerr != nil {
		t.Fatalf("HandleCallback: %v", oerr)
	}
	if store.Domain != "acme.myshopify.com" {
		t.Fatalf("store domain %q", store.Domain)
	}
	if store.AccessToken != "shpat_test_token" || store.Scope != "read_products" {
		t.Fatal("token not applied to store")
	}
	if store.ShopName != "Acme" || store.Currency != "USD" {
		t.Fatal("shop metadata not applied")
	}
	if store.UserID == nil || *store.UserID != 9 {
		t.Fatal("connecting user not recorded")
	}
	if stores.upserted == nil {
		t.Fatal("store not upserted")
	}
	if client.exchangedCode != "authcode" {
		t.Fatalf("exchanged code %q", client.exchangedCode)
	}
}

func TestHandleCallbackFailureCodes(t *testing.T) {
	valid := func() url.Values { return callbackQuery("acme.myshopify.com", "authcode", "nonce123") }

	tampered := valid()
	tampered.Set("shop", "other.myshopify.com")

	noState := url.Values{}
	noState.Set("shop", "acme.myshopify.com")
	noState.Set("code", "authcode")
	signQuery(noState, testAPISecret)

	cases := []struct {
		name        string
		query       url.Values
		stateCookie string
		client      *fakeShopifyClient
		upsertErr   error
		wantCode    string
	}{
		{"missing state param", noState, "nonce123", &fakeShopifyClient{}, nil, OAuthErrMissingParams},
		{"bad domain", callbackQuery("evil.com", "authcode", "nonce123"), "nonce123", &fakeShopifyClient{}, nil, OAuthErrInvalidDomain},
		{"missing cookie", valid(), "", &fakeShopifyClient{}, nil, OAuthErrInvalidState},
		{"state mismatch", valid(), "othernonce", &fakeShopifyClient{}, nil, OAuthErrInvalidState},
		{"tampered query", tampered, "nonce123", &fakeShopifyClient{}, nil, OAuthErrInvalidHMAC},
		{"exchange failure", valid(), "nonce123", &fakeShopifyClient{exchangeErr: errors.New("boom")}, nil, OAuthErrTokenExchangeFailed},
		{"shop info failure", valid(), "nonce123", &fakeShopifyClient{infoErr: errors.New("boom")}, nil, OAuthErrTokenExchangeFailed},
		{"upsert failure", valid(), "nonce123", &fakeShopifyClient{}, errors.New("db down"), OAuthErrStoreSaveFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewOAuthService(tc.client, &fakeStoreRepo{upsertErr: tc.upsertErr}, testAPISecret)
			store, oerr := svc.HandleCallback(context.Background(), tc.query, tc.stateCookie, nil)
			if store != nil {
				t.Fatal("store returned on failure")
			}
			if oerr == nil || oerr.Code != tc.wantCode {
				t.Fatalf("code = %v, want %q", oerr, tc.wantCode)
			}
		})
	}
}
