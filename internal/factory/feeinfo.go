/*

Factory fee-info client. The factory contract owns the per-pair-type fee
configuration (maker fee rate and its sink); the pool queries it over the
node's JSON-RPC endpoint with a proto-encoded abci_query.

*/

package factory

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gogo/protobuf/proto"
	"github.com/rs/zerolog"

	"github.com/astrodex-labs/pcl-core/internal/logger"
	"github.com/astrodex-labs/pcl-core/internal/types"
)

const (
	rpcTimeout = 20 * time.Second
	// feeInfoTTL bounds how stale a cached fee configuration may get.
	feeInfoTTL = 5 * time.Minute
)

// JSONRPCRequest defines the structure of a JSON-RPC request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  ABCIQueryParams `json:"params"`
}

// ABCIQueryParams defines the parameters for the "abci_query" method.
type ABCIQueryParams struct {
	Path   string `json:"path"`
	Data   string `json:"data"` // Hex-encoded string
	Height string `json:"height,omitempty"`
	Prove  bool   `json:"prove,omitempty"`
}

// JSONRPCResponse defines the structure of a JSON-RPC response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  ABCIQueryResult `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// ABCIQueryResult defines the structure of the "result" field for "abci_query".
type ABCIQueryResult struct {
	Response struct {
		Log    string `json:"log"`
		Key    string `json:"key"`   // Base64 encoded
		Value  string `json:"value"` // Base64 encoded
		Height string `json:"height"`
		Code   uint32 `json:"code"`
	} `json:"response"`
}

// JSONRPCError defines the structure of a JSON-RPC error.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

type queryFeeInfoRequest struct {
	PairType string `protobuf:"bytes,1,opt,name=pair_type,json=pairType,proto3" json:"pair_type,omitempty"`
}

func (m *queryFeeInfoRequest) Reset()         { *m = queryFeeInfoRequest{} }
func (m *queryFeeInfoRequest) String() string { return m.PairType }
func (*queryFeeInfoRequest) ProtoMessage()    {}

type queryFeeInfoResponse struct {
	TotalFeeRate string `protobuf:"bytes,1,opt,name=total_fee_rate,json=totalFeeRate,proto3" json:"total_fee_rate,omitempty"`
	MakerFeeRate string `protobuf:"bytes,2,opt,name=maker_fee_rate,json=makerFeeRate,proto3" json:"maker_fee_rate,omitempty"`
	FeeAddress   string `protobuf:"bytes,3,opt,name=fee_address,json=feeAddress,proto3" json:"fee_address,omitempty"`
}

func (m *queryFeeInfoResponse) Reset()         { *m = queryFeeInfoResponse{} }
func (m *queryFeeInfoResponse) String() string { return m.FeeAddress }
func (*queryFeeInfoResponse) ProtoMessage()    {}

// Client queries the factory and caches the answer per pair type.
type Client struct {
	mu          sync.Mutex
	log         zerolog.Logger
	rpcEndpoint string
	cache       map[string]cachedFeeInfo
}

type cachedFeeInfo struct {
	info      types.FeeInfo
	fetchedAt time.Time
}

// NewClient creates a fee-info client against the node RPC endpoint.
func NewClient(rpcEndpoint string) *Client {
	return &Client{
		log:         logger.GetForComponent("factory"),
		rpcEndpoint: rpcEndpoint,
		cache:       make(map[string]cachedFeeInfo),
	}
}

// FeeInfo returns the fee configuration for the given pair type.
func (c *Client) FeeInfo(pairType string) (types.FeeInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.cache[pairType]; ok && time.Since(cached.fetchedAt) < feeInfoTTL {
		return cached.info, nil
	}

	result, err := executeRPCQuery(
		c.rpcEndpoint,
		"/astrodex.factory.v1.Query/FeeInfo",
		&queryFeeInfoRequest{PairType: pairType},
		c.log,
		1, // RPC ID
	)
	if err != nil {
		return types.FeeInfo{}, err
	}

	var resp queryFeeInfoResponse
	if err := proto.Unmarshal(result, &resp); err != nil {
		c.log.Error().Err(err).Msg("Failed to unmarshal fee info response")
		return types.FeeInfo{}, fmt.Errorf("failed to unmarshal fee info response: %w", err)
	}

	totalRate, err := sdkmath.LegacyNewDecFromStr(resp.TotalFeeRate)
	if err != nil {
		return types.FeeInfo{}, fmt.Errorf("malformed total fee rate %q: %w", resp.TotalFeeRate, err)
	}
	makerRate, err := sdkmath.LegacyNewDecFromStr(resp.MakerFeeRate)
	if err != nil {
		return types.FeeInfo{}, fmt.Errorf("malformed maker fee rate %q: %w", resp.MakerFeeRate, err)
	}
	info := types.FeeInfo{
		TotalFeeRate: totalRate,
		MakerFeeRate: makerRate,
		FeeAddress:   resp.FeeAddress,
	}
	c.cache[pairType] = cachedFeeInfo{info: info, fetchedAt: time.Now()}

	c.log.Debug().
		Str("pairType", pairType).
		Str("makerFeeRate", makerRate.String()).
		Str("feeAddress", resp.FeeAddress).
		Msg("Fee info refreshed")
	return info, nil
}

// executeRPCQuery performs a proto-encoded abci_query over JSON-RPC.
func executeRPCQuery(
	rpcEndpoint string,
	abciPath string,
	grpcRequest proto.Message,
	logger zerolog.Logger,
	rpcID int,
) ([]byte, error) {
	protoBytes, err := proto.Marshal(grpcRequest)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to marshal gRPC request")
		return nil, fmt.Errorf("failed to marshal gRPC request: %w", err)
	}
	hexEncodedData := hex.EncodeToString(protoBytes)

	jsonRPCReq := JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      rpcID,
		Method:  "abci_query",
		Params: ABCIQueryParams{
			Path: abciPath,
			Data: hexEncodedData,
		},
	}

	jsonData, err := json.Marshal(jsonRPCReq)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to marshal JSON-RPC request")
		return nil, fmt.Errorf("failed to marshal JSON-RPC request: %w", err)
	}

	logger.Debug().
		Str("endpoint", rpcEndpoint).
		Str("abciPath", abciPath).
		Msg("Executing RPC query")

	httpClient := http.Client{Timeout: rpcTimeout}
	req, err := http.NewRequest("POST", rpcEndpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create HTTP request")
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to send HTTP request")
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read response body")
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var jsonRPCResp JSONRPCResponse
	if err := json.Unmarshal(respBodyBytes, &jsonRPCResp); err != nil {
		logger.Error().Err(err).Str("body", string(respBodyBytes)).Msg("Failed to unmarshal JSON-RPC response")
		return nil, fmt.Errorf("failed to unmarshal JSON-RPC response: %w", err)
	}

	if jsonRPCResp.Error != nil {
		logger.Error().
			Int("code", jsonRPCResp.Error.Code).
			Str("message", jsonRPCResp.Error.Message).
			Msg("RPC error received")
		return nil, fmt.Errorf("RPC error: %s (code %d)", jsonRPCResp.Error.Message, jsonRPCResp.Error.Code)
	}

	if jsonRPCResp.Result.Response.Code != 0 {
		logger.Error().
			Uint32("code", jsonRPCResp.Result.Response.Code).
			Str("log", jsonRPCResp.Result.Response.Log).
			Msg("ABCI query error")
		return nil, fmt.Errorf("ABCI query error (code %d): %s", jsonRPCResp.Result.Response.Code, jsonRPCResp.Result.Response.Log)
	}

	if jsonRPCResp.Result.Response.Value == "" {
		logger.Warn().Str("log", jsonRPCResp.Result.Response.Log).Msg("Empty ABCI query result")
		return nil, fmt.Errorf("empty ABCI query result: %s", jsonRPCResp.Result.Response.Log)
	}

	decodedValueBytes, err := base64.StdEncoding.DecodeString(jsonRPCResp.Result.Response.Value)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to decode base64 result")
		return nil, fmt.Errorf("failed to decode base64 result: %w", err)
	}

	return decodedValueBytes, nil
}
