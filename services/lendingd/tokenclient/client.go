package tokenclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/holiman/uint256"

	"vstreet/crypto"
	nativecommon "vstreet/native/common"
)

const (
	methodTransfer     = "token_transfer"
	methodTransferFrom = "token_transferFrom"
	methodSendValue    = "native_send"
	methodReceiveValue = "native_transferFrom"

	idempotencyHeader = "Idempotency-Key"
)

// Config controls how the Client reaches the token service.
type Config struct {
	URL          string
	BearerToken  string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// Client moves tokens and native value through a remote JSON-RPC 2.0 token
// service. Every call carries an idempotency key that stays fixed across
// retries so the service can deduplicate replays.
type Client struct {
	url    string
	bearer string
	http   *retryablehttp.Client
}

var (
	_ nativecommon.TokenTransfer = (*Client)(nil)
	_ nativecommon.ValueSender   = (*Client)(nil)
	_ nativecommon.ValueReceiver = (*Client)(nil)
)

// New constructs a client.
func New(cfg Config) (*Client, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("tokenclient: url is required")
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 3 * time.Second
	rc.Logger = nil
	if cfg.RetryMax > 0 {
		rc.RetryMax = cfg.RetryMax
	}
	if cfg.RetryWaitMin > 0 {
		rc.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		rc.RetryWaitMax = cfg.RetryWaitMax
	}
	rc.HTTPClient.Timeout = 10 * time.Second
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = cfg.Timeout
	}
	return &Client{url: url, bearer: strings.TrimSpace(cfg.BearerToken), http: rc}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is an error object returned by the token service.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type transferParams struct {
	Token  string `json:"token"`
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type sendParams struct {
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Amount string `json:"amount"`
}

// Transfer implements nativecommon.TokenTransfer.
func (c *Client) Transfer(ctx context.Context, token, to crypto.Address, amount *uint256.Int) error {
	return c.call(ctx, methodTransfer, transferParams{
		Token:  token.String(),
		To:     to.String(),
		Amount: amount.Dec(),
	})
}

// TransferFrom implements nativecommon.TokenTransfer.
func (c *Client) TransferFrom(ctx context.Context, token, from, to crypto.Address, amount *uint256.Int) error {
	return c.call(ctx, methodTransferFrom, transferParams{
		Token:  token.String(),
		From:   from.String(),
		To:     to.String(),
		Amount: amount.Dec(),
	})
}

// SendValue implements nativecommon.ValueSender.
func (c *Client) SendValue(ctx context.Context, to crypto.Address, amount *uint256.Int) error {
	return c.call(ctx, methodSendValue, sendParams{To: to.String(), Amount: amount.Dec()})
}

// ReceiveValue implements nativecommon.ValueReceiver. The service debits
// from, which must have authorised the pool, and credits the pool account.
func (c *Client) ReceiveValue(ctx context.Context, from crypto.Address, amount *uint256.Int) error {
	return c.call(ctx, methodReceiveValue, sendParams{From: from.String(), Amount: amount.Dec()})
}

func (c *Client) call(ctx context.Context, method string, params any) error {
	id, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id.String(), Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("tokenclient: encode request: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("tokenclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client", "lendingd")
	req.Header.Set(idempotencyHeader, id.String())
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("tokenclient: %s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("tokenclient: %s failed with status %s", method, resp.Status)
	}
	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("tokenclient: decode response: %w", err)
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	var ok bool
	if len(decoded.Result) > 0 {
		if err := json.Unmarshal(decoded.Result, &ok); err != nil {
			return fmt.Errorf("tokenclient: decode result: %w", err)
		}
	}
	if !ok {
		return fmt.Errorf("tokenclient: %s was not accepted", method)
	}
	return nil
}
