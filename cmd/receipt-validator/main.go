package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/auctionhouse/api"
	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/receipts"
)

type cliInput struct {
	receipt   string
	publicKey string
	lotID     uint64
	bidID     uint64
	bidder    string
	amount    string
	decimals  int
}

func main() {
	var in cliInput
	flag.StringVar(&in.receipt, "receipt", "", "Settlement receipt (file path or inline base64/base64url/gzip)")
	flag.StringVar(&in.publicKey, "public-key", "", "Trusted receipt signing key PEM (file path or inline)")
	flag.Uint64Var(&in.lotID, "lot", 0, "Lot ID the bid was placed on")
	flag.Uint64Var(&in.bidID, "bid", 0, "Bid ID returned when the bid was placed")
	flag.StringVar(&in.bidder, "bidder", "", "Bidder address")
	flag.StringVar(&in.amount, "amount", "", "Bid amount")
	flag.IntVar(&in.decimals, "decimals", -1, "Quote token decimals; when set, --amount is a human decimal")
	outputFormat := flag.String("format", "text", "Output format: text or json")
	help := flag.Bool("help", false, "Show usage information")

	flag.Parse()

	if *help {
		showUsage()
		os.Exit(0)
	}

	if in.receipt == "" || in.publicKey == "" || in.bidder == "" || in.amount == "" || in.bidID == 0 {
		showUsage()
		fmt.Fprintf(os.Stderr, "\nError: --receipt, --public-key, --bid, --bidder and --amount are required\n")
		os.Exit(1)
	}

	validationInput, err := buildValidationInput(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(2)
	}

	result, err := receipts.Validate(validationInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		os.Exit(2)
	}

	if *outputFormat == "json" {
		outputJSON(result)
	} else {
		outputText(result)
	}

	if !result.IsValid() {
		os.Exit(1)
	}
	os.Exit(0)
}

func showUsage() {
	fmt.Println("Auction House Settlement Receipt Validator")
	fmt.Println()
	fmt.Println("Checks that a signed settlement receipt covers your bid and was signed by the auction house.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  receipt-validator --receipt <receipt> --public-key <pem> --lot <id> --bid <id> --bidder <address> --amount <amount> [options]")
	fmt.Println()
	fmt.Println("Required Flags:")
	fmt.Println("  --receipt <receipt>               Receipt from the settle response or lot view")
	fmt.Println("  --public-key <pem>                Signing key from a receipt_key request")
	fmt.Println("  --lot <id>                        Lot ID")
	fmt.Println("  --bid <id>                        Bid ID")
	fmt.Println("  --bidder <address>                Address the bid was placed from")
	fmt.Println("  --amount <amount>                 Bid amount in quote token base units")
	fmt.Println()
	fmt.Println("Optional Flags:")
	fmt.Println("  --decimals <n>                    Treat --amount as a decimal with n quote token decimals")
	fmt.Println("  --format <text|json>              Output format (default: text)")
	fmt.Println("  --help                            Show this help message")
	fmt.Println()
	fmt.Println("Input Format:")
	fmt.Println("  --receipt and --public-key accept either a file path or the value itself.")
	fmt.Println("  Receipts may be raw COSE bytes, base64, base64url or gzipped base64url.")
	fmt.Println()
	fmt.Println("Example:")
	fmt.Println("  receipt-validator \\")
	fmt.Println("    --receipt receipt.txt --public-key receipts.pem \\")
	fmt.Println("    --lot 3 --bid 1 --bidder 0x000000000000000000000000000000000000b0e4 \\")
	fmt.Println("    --amount 10 --decimals 6")
	fmt.Println()
	fmt.Println("Exit Codes:")
	fmt.Println("  0 - Validation passed")
	fmt.Println("  1 - Validation failed")
	fmt.Println("  2 - Invalid input or runtime error")
}

// readInput returns the contents of input if it names a readable file, otherwise input itself.
func readInput(input string) []byte {
	if data, err := os.ReadFile(input); err == nil {
		return data
	}
	return []byte(input)
}

func buildValidationInput(in cliInput) (*receipts.ValidationInput, error) {
	receipt, err := api.ParseReceipt(readInput(in.receipt))
	if err != nil {
		return nil, fmt.Errorf("parse receipt: %w", err)
	}

	if !common.IsHexAddress(in.bidder) {
		return nil, fmt.Errorf("invalid bidder address %q", in.bidder)
	}

	var amount *big.Int
	if in.decimals >= 0 {
		if in.decimals > int(core.MaxTokenDecimals) {
			return nil, fmt.Errorf("decimals %d out of range", in.decimals)
		}
		if amount, err = core.ParseUnits(in.amount, uint8(in.decimals)); err != nil {
			return nil, err
		}
	} else {
		var ok bool
		if amount, ok = new(big.Int).SetString(in.amount, 10); !ok || amount.Sign() < 0 {
			return nil, fmt.Errorf("invalid amount %q: expected a non-negative integer", in.amount)
		}
	}

	return &receipts.ValidationInput{
		Receipt:      receipt,
		PublicKeyPEM: strings.TrimSpace(string(readInput(in.publicKey))),
		LotID:        in.lotID,
		BidID:        in.bidID,
		Bidder:       common.HexToAddress(in.bidder),
		Amount:       amount,
	}, nil
}

func outputText(result *receipts.ValidationResult) {
	fmt.Println("Auction House Settlement Receipt Validator")
	fmt.Println("==========================================")
	fmt.Println()

	if p := result.Payload; p != nil {
		fmt.Println("Receipt:")
		fmt.Printf("  Receipt ID:              %s\n", p.ReceiptID)
		fmt.Printf("  Lot ID:                  %d\n", p.LotID)
		fmt.Printf("  Total In:                %s\n", p.TotalIn)
		fmt.Printf("  Total Out:               %s\n", p.TotalOut)
		fmt.Printf("  Bids Committed:          %d\n", len(p.BidHashes))
		fmt.Println()
	}

	fmt.Println("Summary:")
	fmt.Printf("  Signature Valid:         %v\n", result.SignatureValid)
	fmt.Printf("  Public Key Match:        %v\n", result.PublicKeyMatch)
	fmt.Printf("  Lot Match:               %v\n", result.LotMatch)
	fmt.Printf("  Bid Hash Valid:          %v\n", result.BidHashValid)
	fmt.Printf("  Settlement Hash Valid:   %v\n", result.SettlementHashValid)

	fmt.Println()
	fmt.Println("Details:")
	for _, detail := range result.ValidationDetails {
		fmt.Printf("  - %s\n", detail)
	}

	fmt.Println()
	fmt.Println("==========================================")
	if result.IsValid() {
		fmt.Println("VALIDATION: ✓ PASSED")
		fmt.Println("Exit Code: 0")
	} else {
		fmt.Println("VALIDATION: ✗ FAILED")
		fmt.Println("Exit Code: 1")
	}
}

func outputJSON(result *receipts.ValidationResult) {
	output := map[string]any{
		"valid":                 result.IsValid(),
		"signature_valid":       result.SignatureValid,
		"public_key_match":      result.PublicKeyMatch,
		"lot_match":             result.LotMatch,
		"bid_hash_valid":        result.BidHashValid,
		"settlement_hash_valid": result.SettlementHashValid,
		"details":               result.ValidationDetails,
		"receipt":               result.Payload,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(data))
}
