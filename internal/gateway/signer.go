// Package gateway signs and submits orders to the venue's CLOB REST API.
// It is the only package that touches the trading wallet's private key;
// everything above it deals in types.Order and types.OrderAck.
package gateway

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"

	"github.com/0xtitan6/btcud-mm/internal/config"
)

// clobSide is the venue's buy/sell direction for a signed order. This
// engine only ever opens positions by buying an outcome token, but both
// directions are modeled since the venue's order schema requires one.
type clobSide int

const (
	buy clobSide = iota
	sell
)

func (s clobSide) String() string {
	if s == sell {
		return "SELL"
	}
	return "BUY"
}

// SignatureType selects how the venue validates a signed order's signer
// against its maker. 0 is a plain externally-owned-account signature.
type SignatureType int

// OrderIntent is the venue-agnostic instruction an Order is translated
// into before signing: which token, which direction, at what price,
// size, and tick precision.
type OrderIntent struct {
	TokenID      string
	Side         clobSide
	Price        float64
	Size         float64
	TickDecimals int32
	FeeRateBps   int64
	ExpiresAt    int64
}

// SignedOrder is the on-chain order structure the venue's REST API
// expects, with maker/taker amounts already scaled to USDC's 6 decimals.
type SignedOrder struct {
	Maker         string        `json:"maker"`
	Signer        string        `json:"signer"`
	Taker         string        `json:"taker"`
	TokenID       string        `json:"tokenId"`
	MakerAmount   string        `json:"makerAmount"`
	TakerAmount   string        `json:"takerAmount"`
	Side          string        `json:"side"`
	Expiration    string        `json:"expiration"`
	Nonce         string        `json:"nonce"`
	FeeRateBps    string        `json:"feeRateBps"`
	SignatureType SignatureType `json:"signatureType"`
}

type orderPayload struct {
	Order     SignedOrder `json:"order"`
	Owner     string      `json:"owner"`
	OrderType string      `json:"orderType"`
}

// Credentials is the L2 HMAC API key triplet used to authenticate trading
// requests, either configured directly or derived from an L1 signature.
type Credentials struct {
	ApiKey     string
	Secret     string
	Passphrase string
}

// walletSigner holds the EOA private key, builds signed order payloads,
// and produces the L1/L2 auth headers the REST client attaches to every
// request. No other type in this package ever reads the key directly.
type walletSigner struct {
	privateKey    *ecdsa.PrivateKey
	address       common.Address
	funderAddress common.Address
	chainID       *big.Int
	sigType       SignatureType
	creds         Credentials
}

func newWalletSigner(cfg config.Config) (*walletSigner, error) {
	keyHex := cfg.Wallet.PrivateKey
	if len(keyHex) >= 2 && keyHex[:2] == "0x" {
		keyHex = keyHex[2:]
	}
	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	funder := address
	if cfg.Wallet.FunderAddress != "" {
		funder = common.HexToAddress(cfg.Wallet.FunderAddress)
	}

	return &walletSigner{
		privateKey:    privateKey,
		address:       address,
		funderAddress: funder,
		chainID:       big.NewInt(int64(cfg.Wallet.ChainID)),
		sigType:       SignatureType(cfg.Wallet.SignatureType),
		creds: Credentials{
			ApiKey:     cfg.API.ApiKey,
			Secret:     cfg.API.Secret,
			Passphrase: cfg.API.Passphrase,
		},
	}, nil
}

func (s *walletSigner) Address() common.Address       { return s.address }
func (s *walletSigner) FunderAddress() common.Address { return s.funderAddress }

func (s *walletSigner) HasL2Credentials() bool {
	return s.creds.ApiKey != "" && s.creds.Secret != "" && s.creds.Passphrase != ""
}

func (s *walletSigner) SetCredentials(c Credentials) { s.creds = c }

// L1Headers authenticates the one-time API-key derivation request.
func (s *walletSigner) L1Headers(nonce int) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := s.signClobAuth(timestamp, nonce)
	if err != nil {
		return nil, fmt.Errorf("sign clob auth: %w", err)
	}
	return map[string]string{
		"POLY_ADDRESS":   s.address.Hex(),
		"POLY_SIGNATURE": sig,
		"POLY_TIMESTAMP": timestamp,
		"POLY_NONCE":     strconv.Itoa(nonce),
	}, nil
}

// L2Headers authenticates a trading request with HMAC over
// timestamp+method+path[+body].
func (s *walletSigner) L2Headers(method, path, body string) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := s.buildHMAC(timestamp, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("build hmac: %w", err)
	}
	return map[string]string{
		"POLY_ADDRESS":    s.address.Hex(),
		"POLY_SIGNATURE":  sig,
		"POLY_TIMESTAMP":  timestamp,
		"POLY_API_KEY":    s.creds.ApiKey,
		"POLY_PASSPHRASE": s.creds.Passphrase,
	}, nil
}

func (s *walletSigner) signClobAuth(timestamp string, nonce int) (string, error) {
	sig, err := s.signTypedData(
		&apitypes.TypedDataDomain{
			Name:    "ClobAuthDomain",
			Version: "1",
			ChainId: (*ethmath.HexOrDecimal256)(new(big.Int).Set(s.chainID)),
		},
		apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"ClobAuth": {
				{Name: "address", Type: "address"},
				{Name: "timestamp", Type: "string"},
				{Name: "nonce", Type: "uint256"},
				{Name: "message", Type: "string"},
			},
		},
		apitypes.TypedDataMessage{
			"address":   s.address.Hex(),
			"timestamp": timestamp,
			"nonce":     fmt.Sprintf("%d", nonce),
			"message":   "This message attests that I control the given wallet",
		},
		"ClobAuth",
	)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	return "0x" + common.Bytes2Hex(sig), nil
}

func (s *walletSigner) signTypedData(domain *apitypes.TypedDataDomain, typesDef apitypes.Types, message apitypes.TypedDataMessage, primaryType string) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       typesDef,
		PrimaryType: primaryType,
		Domain:      *domain,
		Message:     message,
	}
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("typed data hash: %w", err)
	}
	sig, err := crypto.Sign(hash, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign typed data: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

func (s *walletSigner) buildHMAC(timestamp, method, path, body string) (string, error) {
	decoders := []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}
	var secretBytes []byte
	var err error
	for _, dec := range decoders {
		secretBytes, err = dec.DecodeString(s.creds.Secret)
		if err == nil {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}

	message := timestamp + method + path + body
	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Sign builds the maker/taker USDC amounts for intent and returns the
// order structure ready to submit, with the funder wallet as maker and the
// signing EOA as signer.
func (s *walletSigner) Sign(intent OrderIntent) SignedOrder {
	makerAmt, takerAmt := amountsForIntent(intent)
	return SignedOrder{
		Maker:         s.funderAddress.Hex(),
		Signer:        s.address.Hex(),
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenID:       intent.TokenID,
		MakerAmount:   makerAmt.String(),
		TakerAmount:   takerAmt.String(),
		Side:          intent.Side.String(),
		Expiration:    strconv.FormatInt(intent.ExpiresAt, 10),
		Nonce:         "0",
		FeeRateBps:    strconv.FormatInt(intent.FeeRateBps, 10),
		SignatureType: s.sigType,
	}
}

// amountsForIntent converts a human-readable price/size into makerAmount
// and takerAmount as USDC-scaled (6 decimal) integers.
//
// For BUY: makerAmount is the USDC cost (size*price), takerAmount is the
// tokens received (size). For SELL it is the reverse.
func amountsForIntent(intent OrderIntent) (makerAmt, takerAmt *big.Int) {
	decimals := intent.TickDecimals
	if decimals <= 0 {
		decimals = 2
	}
	scale := decimal.New(1, 6) // USDC has 6 decimals on-chain
	size := decimal.NewFromFloat(intent.Size).Truncate(2)
	price := decimal.NewFromFloat(intent.Price)

	switch intent.Side {
	case sell:
		makerAmt = size.Mul(scale).Truncate(0).BigInt()
		revenue := size.Mul(price).Truncate(decimals)
		takerAmt = revenue.Mul(scale).Truncate(0).BigInt()
	default:
		cost := size.Mul(price).Truncate(decimals)
		makerAmt = cost.Mul(scale).Truncate(0).BigInt()
		takerAmt = size.Mul(scale).Truncate(0).BigInt()
	}
	return makerAmt, takerAmt
}
