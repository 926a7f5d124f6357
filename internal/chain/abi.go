package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// marketManagerABI covers only the surface this bot touches. The full
// contract exposes staking and dispute entry points that are never called
// from here.
const marketManagerABI = `[
	{"type":"function","name":"getNextMarketId","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getMarket","stateMutability":"view","inputs":[{"name":"marketId","type":"uint256"}],"outputs":[
		{"name":"creator","type":"address"},
		{"name":"ipfsHash","type":"string"},
		{"name":"paymentToken","type":"address"},
		{"name":"state","type":"uint8"},
		{"name":"endTime","type":"uint256"},
		{"name":"resolutionEndTime","type":"uint256"},
		{"name":"isResolved","type":"bool"},
		{"name":"marketType","type":"uint8"},
		{"name":"priceFeed","type":"address"},
		{"name":"priceThreshold","type":"int256"},
		{"name":"winningOption","type":"uint256"},
		{"name":"assertionMade","type":"bool"}
	]},
	{"type":"function","name":"endMarket","stateMutability":"nonpayable","inputs":[{"name":"marketId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"resolvePriceFeedMarket","stateMutability":"nonpayable","inputs":[{"name":"marketId","type":"uint256"}],"outputs":[]},
	{"type":"event","name":"MarketCreated","inputs":[
		{"name":"marketId","type":"uint256","indexed":true},
		{"name":"creator","type":"address","indexed":true},
		{"name":"ipfsHash","type":"string","indexed":false},
		{"name":"isMultiOption","type":"bool","indexed":false},
		{"name":"maxOptions","type":"uint8","indexed":false},
		{"name":"paymentToken","type":"address","indexed":false},
		{"name":"minStake","type":"uint256","indexed":false},
		{"name":"startTime","type":"uint256","indexed":false},
		{"name":"stakeEndTime","type":"uint256","indexed":false},
		{"name":"endTime","type":"uint256","indexed":false},
		{"name":"resolutionEndTime","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"MarketResolved","inputs":[
		{"name":"marketId","type":"uint256","indexed":true},
		{"name":"winner","type":"uint256","indexed":false},
		{"name":"totalPayout","type":"uint256","indexed":false}
	]}
]`

// adminABI is the token-registry slice of the admin contract.
const adminABI = `[
	{"type":"function","name":"getSupportedTokens","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]}
]`

// erc20ABI is the minimal ERC-20 surface needed for display symbols.
const erc20ABI = `[
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

var (
	managerABI  = mustParseABI(marketManagerABI)
	registryABI = mustParseABI(adminABI)
	tokenABI    = mustParseABI(erc20ABI)

	marketCreatedSig  = crypto.Keccak256Hash([]byte("MarketCreated(uint256,address,string,bool,uint8,address,uint256,uint256,uint256,uint256,uint256)"))
	marketResolvedSig = crypto.Keccak256Hash([]byte("MarketResolved(uint256,uint256,uint256)"))
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("chain: parsing ABI: " + err.Error())
	}
	return parsed
}

// zeroAddress is the sentinel the contract stores for "no price feed".
var zeroAddress = common.Address{}
