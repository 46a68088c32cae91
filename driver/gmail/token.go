package gmail

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// tokenTransport authorizes requests with the current access token.
// A rejected token is exchanged for a fresh one and the request is retried once.
type tokenTransport struct {
	cfg    *oauth2.Config
	client *http.Client
	base   http.RoundTripper

	token     *oauth2.Token
	tokenLock sync.Mutex
}

func newTokenTransport(cfg *oauth2.Config, client *http.Client, token *oauth2.Token) *tokenTransport {
	base := http.DefaultTransport

	if client != nil && client.Transport != nil {
		base = client.Transport
	}

	return &tokenTransport{
		cfg:    cfg,
		client: client,
		base:   base,
		token:  token,
	}
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := t.current()

	res, err := t.base.RoundTrip(authorize(req, token))
	if err != nil || res.StatusCode != http.StatusUnauthorized {
		return res, err
	}

	// The body was consumed by the first attempt and cannot be replayed.
	if req.Body != nil && req.GetBody == nil {
		return res, nil
	}

	// A failed exchange surfaces as the original rejection.
	fresh, err := t.refresh(req.Context(), token)
	if err != nil {
		return res, nil
	}

	_ = res.Body.Close()

	retry := req.Clone(req.Context())

	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}

		retry.Body = body
	}

	return t.base.RoundTrip(authorize(retry, fresh))
}

func (t *tokenTransport) current() *oauth2.Token {
	t.tokenLock.Lock()
	defer t.tokenLock.Unlock()

	return t.token
}

// refresh exchanges the refresh token unless another request already replaced the stale token.
func (t *tokenTransport) refresh(ctx context.Context, stale *oauth2.Token) (*oauth2.Token, error) {
	t.tokenLock.Lock()
	defer t.tokenLock.Unlock()

	if t.token.AccessToken != stale.AccessToken {
		return t.token, nil
	}

	if t.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, t.client)
	}

	fresh, err := t.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: t.token.RefreshToken}).Token()
	if err != nil {
		return nil, err
	}

	t.token = fresh

	return fresh, nil
}

func authorize(req *http.Request, token *oauth2.Token) *http.Request {
	req = req.Clone(req.Context())

	token.SetAuthHeader(req)

	return req
}
