package signer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

// RemoteSigner delegates signing to a custodial HTTP service:
//
//	GET  /address            -> {"address": "0x.."}
//	POST /sign/message       {"message": "0x.."}  -> {"signature": "0x.."}
//	POST /sign/typed-data    {"typedData": {..}}  -> {"signature": "0x.."}
type RemoteSigner struct {
	httpClient *resty.Client

	mu      sync.Mutex
	address *common.Address
}

type remoteAddressResponse struct {
	Address common.Address `json:"address"`
}

type remoteSignatureResponse struct {
	Signature hexutil.Bytes `json:"signature"`
}

type remoteErrorResponse struct {
	Error string `json:"error"`
}

// NewRemoteSigner creates a signer talking to baseURL. A non-empty apiKey is
// sent as a bearer token.
func NewRemoteSigner(baseURL, apiKey string) *RemoteSigner {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &RemoteSigner{httpClient: c}
}

func (s *RemoteSigner) SignerType() string { return "remote" }

// GetAddress asks the service once and caches the answer.
func (s *RemoteSigner) GetAddress(ctx context.Context) (common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.address != nil {
		return *s.address, nil
	}

	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetResult(&remoteAddressResponse{}).
		SetError(&remoteErrorResponse{}).
		Get("/address")
	if err := checkResponse(resp, err); err != nil {
		return common.Address{}, err
	}

	addr := resp.Result().(*remoteAddressResponse).Address
	s.address = &addr
	return addr, nil
}

func (s *RemoteSigner) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	return s.sign(ctx, "/sign/message", map[string]any{"message": hexutil.Encode(msg)})
}

func (s *RemoteSigner) SignTypedData(ctx context.Context, typedData apitypes.TypedData) ([]byte, error) {
	return s.sign(ctx, "/sign/typed-data", map[string]any{"typedData": typedData})
}

func (s *RemoteSigner) sign(ctx context.Context, path string, body map[string]any) ([]byte, error) {
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&remoteSignatureResponse{}).
		SetError(&remoteErrorResponse{}).
		Post(path)
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}

	sig := resp.Result().(*remoteSignatureResponse).Signature
	if len(sig) != 65 {
		return nil, fmt.Errorf("remote signer returned %d byte signature", len(sig))
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("remote signer request failed: %w", err)
	}
	if resp.IsError() {
		if e, ok := resp.Error().(*remoteErrorResponse); ok && e.Error != "" {
			return fmt.Errorf("remote signer %s: %s", resp.Status(), e.Error)
		}
		return fmt.Errorf("remote signer %s: %s", resp.Status(), resp.String())
	}
	return nil
}
