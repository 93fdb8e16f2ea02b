/*

gRPC clients for the external DEX module and the bank balances of the pool's
custodial account. The query messages are hand-tagged proto structs for the
few RPCs we call, so no generated client package is needed.

*/

package orderbook

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"google.golang.org/grpc"
)

// DexClient reads the state of the external limit-order book.
type DexClient interface {
	// Escrow returns the amounts locked in the pool's open orders, per denom.
	Escrow(ctx context.Context, market string) (map[string]sdkmath.Int, error)
}

// BalanceQuerier reads the custodial account's on-chain balances.
type BalanceQuerier interface {
	Balance(ctx context.Context, address, denom string) (sdkmath.Int, error)
}

type coinPb struct {
	Denom  string `protobuf:"bytes,1,opt,name=denom,proto3" json:"denom,omitempty"`
	Amount string `protobuf:"bytes,2,opt,name=amount,proto3" json:"amount,omitempty"`
}

func (m *coinPb) Reset()         { *m = coinPb{} }
func (m *coinPb) String() string { return m.Denom + m.Amount }
func (*coinPb) ProtoMessage()    {}

type queryBalanceRequest struct {
	Address string `protobuf:"bytes,1,opt,name=address,proto3" json:"address,omitempty"`
	Denom   string `protobuf:"bytes,2,opt,name=denom,proto3" json:"denom,omitempty"`
}

func (m *queryBalanceRequest) Reset()         { *m = queryBalanceRequest{} }
func (m *queryBalanceRequest) String() string { return m.Address + "/" + m.Denom }
func (*queryBalanceRequest) ProtoMessage()    {}

type queryBalanceResponse struct {
	Balance *coinPb `protobuf:"bytes,1,opt,name=balance,proto3" json:"balance,omitempty"`
}

func (m *queryBalanceResponse) Reset()         { *m = queryBalanceResponse{} }
func (m *queryBalanceResponse) String() string { return "balance" }
func (*queryBalanceResponse) ProtoMessage()    {}

type queryOrdersRequest struct {
	Market string `protobuf:"bytes,1,opt,name=market,proto3" json:"market,omitempty"`
	Owner  string `protobuf:"bytes,2,opt,name=owner,proto3" json:"owner,omitempty"`
}

func (m *queryOrdersRequest) Reset()         { *m = queryOrdersRequest{} }
func (m *queryOrdersRequest) String() string { return m.Market }
func (*queryOrdersRequest) ProtoMessage()    {}

type orderPb struct {
	OrderId   uint64  `protobuf:"varint,1,opt,name=order_id,json=orderId,proto3" json:"order_id,omitempty"`
	SellCoin  *coinPb `protobuf:"bytes,2,opt,name=sell_coin,json=sellCoin,proto3" json:"sell_coin,omitempty"`
	Remaining string  `protobuf:"bytes,3,opt,name=remaining,proto3" json:"remaining,omitempty"`
}

func (m *orderPb) Reset()         { *m = orderPb{} }
func (m *orderPb) String() string { return fmt.Sprintf("order %d", m.OrderId) }
func (*orderPb) ProtoMessage()    {}

type queryOrdersResponse struct {
	Orders []*orderPb `protobuf:"bytes,1,rep,name=orders,proto3" json:"orders,omitempty"`
}

func (m *queryOrdersResponse) Reset()         { *m = queryOrdersResponse{} }
func (m *queryOrdersResponse) String() string { return "orders" }
func (*queryOrdersResponse) ProtoMessage()    {}

// GrpcClient implements DexClient and BalanceQuerier over one node connection.
type GrpcClient struct {
	conn  *grpc.ClientConn
	owner string
}

// NewGrpcClient wraps an established connection. owner is the custodial
// account whose orders and balances are queried.
func NewGrpcClient(conn *grpc.ClientConn, owner string) *GrpcClient {
	return &GrpcClient{conn: conn, owner: owner}
}

func (c *GrpcClient) Escrow(ctx context.Context, market string) (map[string]sdkmath.Int, error) {
	req := &queryOrdersRequest{Market: market, Owner: c.owner}
	resp := &queryOrdersResponse{}
	if err := c.conn.Invoke(ctx, "/astrodex.dex.v1.Query/OrdersByOwner", req, resp); err != nil {
		return nil, fmt.Errorf("orders query failed: %w", err)
	}
	escrow := make(map[string]sdkmath.Int)
	for _, o := range resp.Orders {
		if o.SellCoin == nil {
			continue
		}
		remaining, ok := sdkmath.NewIntFromString(o.Remaining)
		if !ok {
			return nil, fmt.Errorf("order %d: malformed remaining amount %q", o.OrderId, o.Remaining)
		}
		prev, exists := escrow[o.SellCoin.Denom]
		if !exists {
			prev = sdkmath.ZeroInt()
		}
		escrow[o.SellCoin.Denom] = prev.Add(remaining)
	}
	return escrow, nil
}

func (c *GrpcClient) Balance(ctx context.Context, address, denom string) (sdkmath.Int, error) {
	req := &queryBalanceRequest{Address: address, Denom: denom}
	resp := &queryBalanceResponse{}
	if err := c.conn.Invoke(ctx, "/cosmos.bank.v1beta1.Query/Balance", req, resp); err != nil {
		return sdkmath.Int{}, fmt.Errorf("balance query failed: %w", err)
	}
	if resp.Balance == nil {
		return sdkmath.ZeroInt(), nil
	}
	amount, ok := sdkmath.NewIntFromString(resp.Balance.Amount)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("malformed balance amount %q for %s", resp.Balance.Amount, denom)
	}
	return amount, nil
}
