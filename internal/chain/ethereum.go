// Package chain is the blockchain-data collaborator: it fetches raw
// transfers from an EVM node and normalizes them into TransactionRecord.
// USD enrichment is delegated to an injected price function so the
// analysis core never depends on a price feed.
package chain

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/rawblock/otc-engine/pkg/models"
)

// Fetcher supplies normalized transaction history for one address.
type Fetcher interface {
	FetchTransactions(ctx context.Context, address string, limit int) ([]models.TransactionRecord, error)
}

// PriceFunc converts a native-token amount at a point in time to USD.
// Returning false leaves the record unenriched (nil USDValue).
type PriceFunc func(symbol string, amount float64, at time.Time) (float64, bool)

const defaultScanDepth = 2_000

// Ethereum reads transfers from an EVM JSON-RPC endpoint.
type Ethereum struct {
	client    *ethclient.Client
	chainID   *big.Int
	name      string
	price     PriceFunc
	scanDepth uint64
}

// NewEthereum dials the endpoint and resolves the chain id used for
// sender recovery.
func NewEthereum(ctx context.Context, rpcURL, name string, price PriceFunc) (*Ethereum, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	chainID, err := client.NetworkID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve network id: %w", err)
	}
	log.Printf("[Chain:%s] Connected, chain id %s", name, chainID)

	return &Ethereum{
		client:    client,
		chainID:   chainID,
		name:      name,
		price:     price,
		scanDepth: defaultScanDepth,
	}, nil
}

func (e *Ethereum) Close() {
	e.client.Close()
}

// FetchTransactions walks back from the chain head collecting transfers
// that touch the address, newest first, until limit records are found or
// the scan depth is exhausted.
func (e *Ethereum) FetchTransactions(ctx context.Context, address string, limit int) ([]models.TransactionRecord, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("fetch transactions: %w: bad address %q", models.ErrInvalidInput, address)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("fetch transactions: %w: non-positive limit %d", models.ErrInvalidInput, limit)
	}

	head, err := e.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chain head: %w", err)
	}

	target := strings.ToLower(address)
	var records []models.TransactionRecord
	for depth := uint64(0); depth < e.scanDepth && head >= depth; depth++ {
		block, err := e.client.BlockByNumber(ctx, new(big.Int).SetUint64(head-depth))
		if err != nil {
			return records, fmt.Errorf("read block %d: %w", head-depth, err)
		}
		for _, tx := range block.Transactions() {
			record, err := e.normalize(tx, block.Time())
			if err != nil {
				continue
			}
			if strings.ToLower(record.FromAddress) != target && strings.ToLower(record.ToAddress) != target {
				continue
			}
			records = append(records, record)
			if len(records) >= limit {
				return records, nil
			}
		}
	}
	return records, nil
}

// FetchBlockRange normalizes every transfer in [from, to] for range
// scanning.
func (e *Ethereum) FetchBlockRange(ctx context.Context, from, to uint64) ([]models.TransactionRecord, error) {
	if to < from {
		return nil, fmt.Errorf("fetch block range: %w: %d..%d", models.ErrInvalidInput, from, to)
	}

	var records []models.TransactionRecord
	for n := from; n <= to; n++ {
		block, err := e.client.BlockByNumber(ctx, new(big.Int).SetUint64(n))
		if err != nil {
			return records, fmt.Errorf("read block %d: %w", n, err)
		}
		for _, tx := range block.Transactions() {
			record, err := e.normalize(tx, block.Time())
			if err != nil {
				continue
			}
			records = append(records, record)
		}
	}
	return records, nil
}

// Head returns the current chain head.
func (e *Ethereum) Head(ctx context.Context) (uint64, error) {
	return e.client.BlockNumber(ctx)
}

func (e *Ethereum) normalize(tx *ethtypes.Transaction, blockTime uint64) (models.TransactionRecord, error) {
	from, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(e.chainID), tx)
	if err != nil {
		return models.TransactionRecord{}, fmt.Errorf("recover sender of %s: %w", tx.Hash(), err)
	}

	record := models.TransactionRecord{
		Hash:                tx.Hash().Hex(),
		FromAddress:         strings.ToLower(from.Hex()),
		Timestamp:           time.Unix(int64(blockTime), 0).UTC(),
		TokenSymbol:         "ETH",
		TokenAmount:         weiToEther(tx.Value()),
		ContractInteraction: len(tx.Data()) > 0,
	}
	if to := tx.To(); to != nil {
		record.ToAddress = strings.ToLower(to.Hex())
	}
	if e.price != nil {
		if usd, ok := e.price(record.TokenSymbol, record.TokenAmount, record.Timestamp); ok {
			record.USDValue = &usd
		}
	}
	return record, nil
}

func weiToEther(wei *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18)).Float64()
	return f
}
