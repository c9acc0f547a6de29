package service

import (
	"context"
	"fmt"
	"net/url"

	"github.com/shopiq/shopiq-backend/internal/domain"
	"github.com/shopiq/shopiq-backend/internal/observability"
	"github.com/shopiq/shopiq-backend/internal/repository"
	"github.com/shopiq/shopiq-backend/internal/security"
	"github.com/shopiq/shopiq-backend/internal/shopify"
)

// Machine-readable OAuth failure codes. Browsers only ever see these;
// the underlying error stays server-side.
const (
	OAuthErrMissingParams       = "missing_params"
	OAuthErrInvalidDomain       = "invalid_domain"
	OAuthErrInvalidState        = "invalid_state"
	OAuthErrInvalidHMAC         = "invalid_hmac"
	OAuthErrTokenExchangeFailed = "token_exchange_failed"
	OAuthErrStoreSaveFailed     = "store_save_failed"
)

// OAuthError carries the redirect code alongside the wrapped cause.
type OAuthError struct {
	Code string
	Err  error
}

func (e *OAuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth %s: %v", e.Code, e.Err)
	}
	return "oauth " + e.Code
}

func (e *OAuthError) Unwrap() error { return e.Err }

func oauthErr(code string, err error) *OAuthError {
	return &OAuthError{Code: code, Err: err}
}

type OAuthService struct {
	client    shopify.Client
	storeRepo repository.StoreRepository
	apiSecret string
}

func NewOAuthService(client shopify.Client, storeRepo repository.StoreRepository, apiSecret string) *OAuthService {
	return &OAuthService{client: client, storeRepo: storeRepo, apiSecret: apiSecret}
}

// BeginConnect validates the shop domain and builds the authorize URL
// with a fresh nonce. The caller holds the nonce in a short-lived
// HttpOnly cookie and sends it back as state.
func (s *OAuthService) BeginConnect(shop string) (authorizeURL, nonce string, err *OAuthError) {
	if !shopify.ValidShopDomain(shop) {
		return "", "", oauthErr(OAuthErrInvalidDomain, nil)
	}
	n, genErr := security.GenerateNonce()
	if genErr != nil {
		return "", "", oauthErr(OAuthErrInvalidState, genErr)
	}
	return s.client.AuthorizeURL(shop, n), n, nil
}

// HandleCallback runs the full verification ladder and, on success,
// upserts the store keyed by its domain. stateCookie is the nonce read
// from the state cookie; the handler deletes the cookie before calling
// so every state value is single-use.
func (s *OAuthService) HandleCallback(ctx context.Context, query url.Values, stateCookie string, userID *uint) (*domain.Store, *OAuthError) {
	shop := query.Get("shop")
	code := query.Get("code")
	state := query.Get("state")
	if shop == "" || code == "" || state == "" {
		observability.RecordOAuthCallback(OAuthErrMissingParams)
		return nil, oauthErr(OAuthErrMissingParams, nil)
	}
	if !shopify.ValidShopDomain(shop) {
		observability.RecordOAuthCallback(OAuthErrInvalidDomain)
		return nil, oauthErr(OAuthErrInvalidDomain, nil)
	}
	// Plain equality: the nonce is unguessable but not secret once
	// issued, and the cookie deletion makes it single-use.
	if stateCookie == "" || stateCookie != state {
		observability.RecordOAuthCallback(OAuthErrInvalidState)
		return nil, oauthErr(OAuthErrInvalidState, nil)
	}
	if !shopify.VerifyHMAC(query, s.apiSecret) {
		observability.RecordOAuthCallback(OAuthErrInvalidHMAC)
		return nil, oauthErr(OAuthErrInvalidHMAC, nil)
	}

	token, err := s.client.ExchangeCode(ctx, shop, code)
	if err != nil {
		observability.RecordOAuthCallback(OAuthErrTokenExchangeFailed)
		return nil, oauthErr(OAuthErrTokenExchangeFailed, err)
	}
	info, err := s.client.GetShopInfo(ctx, shop, token.AccessToken)
	if err != nil {
		observability.RecordOAuthCallback(OAuthErrTokenExchangeFailed)
		return nil, oauthErr(OAuthErrTokenExchangeFailed, err)
	}

	store := &domain.Store{
		Domain:      shop,
		UserID:      userID,
		AccessToken: token.AccessToken,
		Scope:       token.Scope,
		ShopName:    info.Name,
		ShopEmail:   info.Email,
		Currency:    info.Currency,
		Timezone:    info.Timezone,
	}
	if err := s.storeRepo.UpsertByDomain(store); err != nil {
		observability.RecordOAuthCallback(OAuthErrStoreSaveFailed)
		return nil, oauthErr(OAuthErrStoreSaveFailed, err)
	}
	observability.RecordOAuthCallback("success")
	return store, nil
}
