package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xtitan6/btcud-mm/internal/config"
)

const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func testWalletConfig() config.Config {
	return config.Config{
		Wallet: config.WalletConfig{
			PrivateKey: testPrivateKey,
			ChainID:    137,
		},
		API: config.APIConfig{
			ApiKey:     "key",
			Secret:     "c2VjcmV0LXZhbHVl", // base64 "secret-value"
			Passphrase: "pass",
		},
	}
}

func TestNewWalletSignerDerivesAddress(t *testing.T) {
	signer, err := newWalletSigner(testWalletConfig())
	require.NoError(t, err)
	assert.NotEqual(t, "0x0000000000000000000000000000000000000000", signer.Address().Hex())
	assert.Equal(t, signer.Address(), signer.FunderAddress())
}

func TestNewWalletSignerUsesFunderAddressWhenSet(t *testing.T) {
	cfg := testWalletConfig()
	cfg.Wallet.FunderAddress = "0x000000000000000000000000000000000000f1"
	signer, err := newWalletSigner(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, signer.Address(), signer.FunderAddress())
}

func TestNewWalletSignerStripsHexPrefix(t *testing.T) {
	cfg := testWalletConfig()
	cfg.Wallet.PrivateKey = "0x" + testPrivateKey
	signer, err := newWalletSigner(cfg)
	require.NoError(t, err)
	plain, err := newWalletSigner(testWalletConfig())
	require.NoError(t, err)
	assert.Equal(t, plain.Address(), signer.Address())
}

func TestHasL2CredentialsRequiresAllThree(t *testing.T) {
	signer, err := newWalletSigner(testWalletConfig())
	require.NoError(t, err)
	assert.True(t, signer.HasL2Credentials())

	signer.SetCredentials(Credentials{ApiKey: "only-key"})
	assert.False(t, signer.HasL2Credentials())
}

func TestL2HeadersProducesExpectedFields(t *testing.T) {
	signer, err := newWalletSigner(testWalletConfig())
	require.NoError(t, err)
	headers, err := signer.L2Headers("POST", "/order", `{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, signer.Address().Hex(), headers["POLY_ADDRESS"])
	assert.Equal(t, "key", headers["POLY_API_KEY"])
	assert.Equal(t, "pass", headers["POLY_PASSPHRASE"])
	assert.NotEmpty(t, headers["POLY_SIGNATURE"])
}

func TestSignBuildsMakerAsFunderAndSignerAsEOA(t *testing.T) {
	signer, err := newWalletSigner(testWalletConfig())
	require.NoError(t, err)
	order := signer.Sign(OrderIntent{TokenID: "tok-1", Side: buy, Price: 0.42, Size: 10, TickDecimals: 2})
	assert.Equal(t, signer.FunderAddress().Hex(), order.Maker)
	assert.Equal(t, signer.Address().Hex(), order.Signer)
	assert.Equal(t, "BUY", order.Side)
}

func TestAmountsForIntentBuyScalesToUSDCDecimals(t *testing.T) {
	makerAmt, takerAmt := amountsForIntent(OrderIntent{Side: buy, Price: 0.50, Size: 10, TickDecimals: 2})
	assert.Equal(t, "5000000", makerAmt.String())  // 10 * 0.50 = 5 USDC, scaled by 1e6
	assert.Equal(t, "10000000", takerAmt.String()) // 10 tokens, scaled by 1e6
}

func TestAmountsForIntentSellSwapsMakerTaker(t *testing.T) {
	makerAmt, takerAmt := amountsForIntent(OrderIntent{Side: sell, Price: 0.60, Size: 5, TickDecimals: 2})
	assert.Equal(t, "5000000", makerAmt.String())  // 5 tokens given, scaled by 1e6
	assert.Equal(t, "3000000", takerAmt.String()) // 5 * 0.60 = 3 USDC, scaled by 1e6
}

func TestAmountsForIntentTruncatesFractionalSize(t *testing.T) {
	makerAmt, _ := amountsForIntent(OrderIntent{Side: sell, Price: 1, Size: 1.239, TickDecimals: 2})
	assert.Equal(t, "1230000", makerAmt.String()) // size truncated to 2 decimals before scaling
}
