package chain

import (
	"fmt"
	"sort"
)

type Network struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	ExplorerURL string `json:"explorer_url,omitempty"`
	Testnet     bool   `json:"testnet"`
}

var networks = map[int64]Network{
	1:        {ID: 1, Name: "Ethereum Mainnet", Symbol: "ETH", ExplorerURL: "https://etherscan.io"},
	11155111: {ID: 11155111, Name: "Sepolia", Symbol: "ETH", ExplorerURL: "https://sepolia.etherscan.io", Testnet: true},
	17000:    {ID: 17000, Name: "Holesky", Symbol: "ETH", ExplorerURL: "https://holesky.etherscan.io", Testnet: true},
	137:      {ID: 137, Name: "Polygon", Symbol: "POL", ExplorerURL: "https://polygonscan.com"},
	80002:    {ID: 80002, Name: "Polygon Amoy", Symbol: "POL", ExplorerURL: "https://amoy.polygonscan.com", Testnet: true},
	1337:     {ID: 1337, Name: "Localhost", Symbol: "ETH", Testnet: true},
	31337:    {ID: 31337, Name: "Hardhat", Symbol: "ETH", Testnet: true},
}

// NetworkByName finds a registry entry by the display name stored on tracked
// transactions.
func NetworkByName(name string) (Network, bool) {
	for _, network := range networks {
		if network.Name == name {
			return network, true
		}
	}
	return Network{}, false
}

// NetworkName returns a display name for any chain id, including ones the
// platform does not support.
func NetworkName(chainID int64) string {
	if network, ok := networks[chainID]; ok {
		return network.Name
	}
	return fmt.Sprintf("Unknown network (%d)", chainID)
}

func IsSupported(chainID int64) bool {
	_, ok := networks[chainID]
	return ok
}

// SupportedNetworks lists the registry ordered by chain id.
func SupportedNetworks() []Network {
	list := make([]Network, 0, len(networks))
	for _, network := range networks {
		list = append(list, network)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})

	return list
}

// TransactionURL links a hash to the network's block explorer, or returns ""
// when the network has none.
func (n Network) TransactionURL(hash string) string {
	if n.ExplorerURL == "" {
		return ""
	}
	return n.ExplorerURL + "/tx/" + hash
}
