package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"sentechain/cmd/internal/passphrase"
	"sentechain/core"
	"sentechain/crypto"
	"sentechain/gateway/middleware"
	"sentechain/integrations/exports"
	"sentechain/storage"
)

const (
	envRPCURL   = "SENTE_RPC_URL"
	envRPCToken = "SENTE_RPC_TOKEN"
)

var (
	rpcEndpoint  = defaultRPCEndpoint()
	rpcAuthToken = os.Getenv(envRPCToken)
	httpClient   = &http.Client{Timeout: 15 * time.Second}
	nowFn        = time.Now
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	args, err := applyGlobalFlags(args)
	if err != nil {
		return err
	}
	if len(args) < 1 {
		printUsage(out)
		return nil
	}
	command, rest := args[0], args[1:]
	switch command {
	case "keygen":
		return keygen(rest, out)
	case "address":
		return address(rest, out)
	case "token":
		return issueToken(rest, out)
	case "export":
		return exportLoans(rest, out)
	case "call":
		return call(rest, out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command %q", command)
	}
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv(envRPCURL)); v != "" {
		return v
	}
	return "http://localhost:8080/rpc"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, errors.New("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func keygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(out)
	path := fs.String("out", "operator.keystore", "Keystore file to write")
	passEnv := fs.String("passphrase-env", passphrase.EnvOperatorPassphrase, "Variable holding the keystore passphrase")
	insecure := fs.Bool("no-passphrase", false, "DEV ONLY: write an unencrypted keystore")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := os.Stat(*path); err == nil {
		return fmt.Errorf("%s already exists", *path)
	}
	pass := ""
	if !*insecure {
		var err error
		if pass, err = passphrase.NewSource(*passEnv, "new keystore").Get(); err != nil {
			return err
		}
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(*path, key, pass); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s\nAddress: %s\n", *path, key.Address().String())
	return nil
}

func address(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	fs.SetOutput(out)
	passEnv := fs.String("passphrase-env", passphrase.EnvOperatorPassphrase, "Variable holding the keystore passphrase")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: address <keystore>")
	}
	key, err := openKeystore(fs.Arg(0), passphrase.NewSource(*passEnv, "keystore").Get)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, key.Address().String())
	return nil
}

func issueToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	secretEnv := fs.String("secret-env", "SENTE_JWT_SECRET", "Variable holding the HS256 secret")
	subject := fs.String("subject", "", "Caller address the token authenticates")
	issuer := fs.String("issuer", "", "Token issuer")
	audience := fs.String("audience", "", "Token audience")
	scope := fs.String("scope", "", "Optional scope claim")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr, err := crypto.DecodeAddress(strings.TrimSpace(*subject))
	if err != nil {
		return fmt.Errorf("subject: %w", err)
	}
	secret := os.Getenv(*secretEnv)
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("%s is empty", *secretEnv)
	}
	token, err := middleware.IssueToken(secret, addr, *issuer, *audience, *scope, *ttl, nowFn())
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

// exportLoans reads the ledger offline. LevelDB holds a process lock, so the
// daemon must be stopped first.
func exportLoans(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(out)
	dataDir := fs.String("data-dir", "./sente-data", "Ledger data directory")
	backend := fs.String("backend", storage.BackendLevelDB, "Storage backend (leveldb|bolt)")
	dir := fs.String("out", "exports", "Directory receiving the export files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.EqualFold(strings.TrimSpace(*backend), storage.BackendMemory) {
		return errors.New("the memory backend has nothing to export")
	}
	db, err := storage.Open(*backend, *dataDir)
	if err != nil {
		return err
	}
	node, err := core.NewNode(db, core.Config{})
	if err != nil {
		db.Close()
		return err
	}
	defer node.Close()
	loans, err := node.AllLoans()
	if err != nil {
		return err
	}
	manifests, err := exports.WriteAll(*dir, loans, nowFn())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(manifests)
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      int               `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call sends one JSON-RPC request. The optional second argument is the JSON
// parameter object.
func call(args []string, out io.Writer) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: call <method> [json-params]")
	}
	req := rpcRequest{JSONRPC: "2.0", ID: 1, Method: args[0]}
	if len(args) == 2 {
		raw := json.RawMessage(strings.TrimSpace(args[1]))
		if !json.Valid(raw) {
			return errors.New("params must be valid JSON")
		}
		req.Params = []json.RawMessage{raw}
	}
	result, err := callRPC(req)
	if err != nil {
		return err
	}
	return printJSON(out, result)
}

func callRPC(req rpcRequest) (json.RawMessage, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token := strings.TrimSpace(rpcAuthToken); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", rpcEndpoint, err)
	}
	defer resp.Body.Close()
	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("rpc %s: status %d: %w", rpcEndpoint, resp.StatusCode, err)
	}
	if decoded.Error != nil {
		msg := fmt.Sprintf("rpc error %d: %s", decoded.Error.Code, decoded.Error.Message)
		if len(decoded.Error.Data) > 0 {
			msg += " " + string(decoded.Error.Data)
		}
		return nil, errors.New(msg)
	}
	return decoded.Result, nil
}

func printJSON(out io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = fmt.Fprintln(out, string(raw))
		return err
	}
	_, err := fmt.Fprintln(out, buf.String())
	return err
}

func openKeystore(path string, resolve func() (string, error)) (*crypto.PrivateKey, error) {
	if key, err := crypto.LoadFromKeystore(path, ""); err == nil {
		return key, nil
	} else if errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	pass, err := resolve()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, pass)
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: sentechain-cli [--rpc URL] <command> [arguments]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  keygen [--out FILE] [--no-passphrase]   - Generates a key and writes a keystore")
	fmt.Fprintln(out, "  address <keystore>                      - Prints the address held by a keystore")
	fmt.Fprintln(out, "  token --subject ADDR [--ttl 1h]         - Issues a bearer token for the RPC server")
	fmt.Fprintln(out, "  export [--data-dir DIR] [--out DIR]     - Writes CSV and Parquet loan snapshots")
	fmt.Fprintln(out, "  call <method> [json-params]             - Sends a JSON-RPC request")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "The RPC endpoint defaults to %s or http://localhost:8080/rpc; %s supplies a bearer token.\n", envRPCURL, envRPCToken)
}
