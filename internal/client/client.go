// Package client talks to a tsl daemon over HTTP. Mutations are signed with
// the caller's identity and submitted as transactions; queries are plain GETs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "threesquare.land/tsl/internal/errors"
	"threesquare.land/tsl/internal/identity"
	"threesquare.land/tsl/internal/txapp"
	"threesquare.land/tsl/internal/types"
)

const defaultTimeout = 10 * time.Second

// ErrNoIdentity is returned when a mutation is attempted without a key.
var ErrNoIdentity = errors.New("client has no identity")

// Client is responsible for communicating with a tsl daemon.
type Client struct {
	baseURL string
	http    *http.Client
	id      *identity.Identity
}

// New creates a client for the daemon at baseURL. id may be nil for a
// read-only client.
func New(baseURL string, id *identity.Identity) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		id:      id,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Owner returns the identity the client signs as, or Unowned.
func (c *Client) Owner() types.Owner {
	if c.id == nil {
		return types.Unowned
	}
	return c.id.Owner()
}

// Submit signs and submits a transaction. A result the daemon rejected is
// returned as an error; ledger rejections carry their error code so
// errors.Is works against the apperrors sentinels.
func (c *Client) Submit(ctx context.Context, txType types.TransactionType, payload any) (txapp.Result, error) {
	if c.id == nil {
		return txapp.Result{}, ErrNoIdentity
	}
	tx, err := types.NewTransaction(txType, payload)
	if err != nil {
		return txapp.Result{}, fmt.Errorf("build transaction: %w", err)
	}
	stx, err := c.id.SignTransaction(tx)
	if err != nil {
		return txapp.Result{}, fmt.Errorf("sign transaction: %w", err)
	}
	body, err := json.Marshal(stx)
	if err != nil {
		return txapp.Result{}, fmt.Errorf("encode transaction: %w", err)
	}

	var res txapp.Result
	status, err := c.do(ctx, http.MethodPost, "/api/tx", bytes.NewReader(body), &res)
	if err != nil {
		return res, err
	}
	if !res.IsOK() {
		if res.Code == txapp.CodeTypeRejected && res.Reason != "" {
			return res, apperrors.New(res.Reason, res.Log)
		}
		return res, fmt.Errorf("transaction rejected (HTTP %d, code %d): %s", status, res.Code, res.Log)
	}
	return res, nil
}

func (c *Client) Claim(ctx context.Context, square types.Square) error {
	_, err := c.Submit(ctx, types.TxClaim, types.ClaimPayload{Square: square})
	return err
}

func (c *Client) Release(ctx context.Context, square types.Square) error {
	_, err := c.Submit(ctx, types.TxRelease, types.ReleasePayload{Square: square})
	return err
}

// Swap offers mySquare for otherUser's theirSquare, or completes the
// exchange when otherUser already made the reciprocal offer.
func (c *Client) Swap(ctx context.Context, mySquare, theirSquare types.Square, otherUser types.Owner) (types.SwapResult, error) {
	var out types.SwapResult
	res, err := c.Submit(ctx, types.TxSwap, types.SwapPayload{MySquare: mySquare, TheirSquare: theirSquare, OtherUser: otherUser})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(res.Data, &out); err != nil {
		return out, fmt.Errorf("decode swap result: %w", err)
	}
	return out, nil
}

func (c *Client) CancelSwap(ctx context.Context, id types.OfferID) error {
	_, err := c.Submit(ctx, types.TxCancelSwap, types.CancelSwapPayload{OfferID: id})
	return err
}

// DeleteAccount releases every square held by the client's identity.
func (c *Client) DeleteAccount(ctx context.Context) (txapp.DeleteAccountResult, error) {
	var out txapp.DeleteAccountResult
	res, err := c.Submit(ctx, types.TxDeleteAccount, types.DeleteAccountPayload{})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(res.Data, &out); err != nil {
		return out, fmt.Errorf("decode delete result: %w", err)
	}
	return out, nil
}

// SquareOwner returns the owner of square, or Unowned.
func (c *Client) SquareOwner(ctx context.Context, square types.Square) (types.Owner, error) {
	var out struct {
		Owner types.Owner `json:"owner"`
	}
	if err := c.get(ctx, "/api/squares/owner", url.Values{"square": {string(square)}}, &out); err != nil {
		return types.Unowned, err
	}
	return out.Owner, nil
}

func (c *Client) Inventory(ctx context.Context, owner types.Owner) ([]types.Square, error) {
	var out struct {
		Squares []types.Square `json:"squares"`
	}
	if err := c.get(ctx, "/api/inventory", url.Values{"owner": {string(owner)}}, &out); err != nil {
		return nil, err
	}
	return out.Squares, nil
}

func (c *Client) Offers(ctx context.Context, owner types.Owner) ([]types.SwapOffer, error) {
	var out []types.SwapOffer
	err := c.get(ctx, "/api/offers", url.Values{"owner": {string(owner)}}, &out)
	return out, err
}

func (c *Client) Offer(ctx context.Context, id types.OfferID) (types.SwapOffer, error) {
	var out types.SwapOffer
	err := c.get(ctx, "/api/offers/id", url.Values{"id": {string(id)}}, &out)
	return out, err
}

// Events returns up to limit events after since.
func (c *Client) Events(ctx context.Context, since uint64, limit int) ([]types.Event, error) {
	q := url.Values{"since": {strconv.FormatUint(since, 10)}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []types.Event
	err := c.get(ctx, "/api/events", q, &out)
	return out, err
}

// Version returns the daemon's version information.
func (c *Client) Version(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	err := c.get(ctx, "/api/version", nil, &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, q url.Values, into any) error {
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	status, err := c.do(ctx, http.MethodGet, path, nil, into)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("GET %s: HTTP %d", path, status)
	}
	return nil
}

// do performs a request and decodes a JSON response body. Error bodies of
// the form {"error": ..., "code": ...} become errors.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, into any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string         `json:"error"`
			Code  apperrors.Code `json:"code"`
		}
		if json.Unmarshal(data, &apiErr) == nil {
			if apiErr.Code != "" {
				return resp.StatusCode, apperrors.New(apiErr.Code, apiErr.Error)
			}
			if apiErr.Error != "" {
				return resp.StatusCode, fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, apiErr.Error)
			}
		}
		// Transaction results are decoded by the caller.
		if method == http.MethodPost && into != nil && json.Unmarshal(data, into) == nil {
			return resp.StatusCode, nil
		}
		return resp.StatusCode, fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if into != nil {
		if err := json.Unmarshal(data, into); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
