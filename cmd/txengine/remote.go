package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type remoteOptions struct {
	baseURL string
	timeout time.Duration
}

func (o *remoteOptions) client() *http.Client {
	return &http.Client{Timeout: o.timeout}
}

func (o *remoteOptions) url(path string) string {
	return strings.TrimRight(o.baseURL, "/") + path
}

func newRemoteCmd() *cobra.Command {
	opts := &remoteOptions{}

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Talk to a running txengine server",
	}

	cmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the txengine API")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")

	cmd.AddCommand(newRemoteUploadCmd(opts))
	cmd.AddCommand(newRemoteAccountsCmd(opts))
	cmd.AddCommand(newRemoteBatchCmd(opts))

	return cmd
}

func newRemoteUploadCmd(opts *remoteOptions) *cobra.Command {
	var (
		failFast       bool
		idempotencyKey string
	)

	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a CSV batch and print its report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read batch: %w", err)
			}

			path := "/api/v1/transactions/"
			if failFast {
				path += "?fail_fast=true"
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, opts.url(path), bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "text/csv")
			if idempotencyKey != "" {
				req.Header.Set("Idempotency-Key", idempotencyKey)
			}

			return doJSON(cmd, opts.client(), req)
		},
	}

	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first record that is not applied cleanly")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency-Key header value")

	return cmd
}

func newRemoteAccountsCmd(opts *remoteOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "Print the server's account snapshot as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, opts.url("/api/v1/accounts/?format=csv"), nil)
			if err != nil {
				return err
			}

			resp, err := opts.client().Do(req)
			if err != nil {
				return fmt.Errorf("error making request: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("request failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}

			_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
			return err
		},
	}
}

func newRemoteBatchCmd(opts *remoteOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "batch ID",
		Short: "Print a stored batch report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, opts.url("/api/v1/batches/"+args[0]), nil)
			if err != nil {
				return err
			}
			return doJSON(cmd, opts.client(), req)
		},
	}
}

// doJSON sends req and pretty-prints the JSON body. Any status outside 2xx
// is returned as an error after the body is printed.
func doJSON(cmd *cobra.Command, client *http.Client, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	printJSON(cmd.OutOrStdout(), body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request failed (status %d)", resp.StatusCode)
	}
	return nil
}

func printJSON(w io.Writer, body []byte) {
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		fmt.Fprintln(w, truncate(string(body), 500))
		return
	}
	fmt.Fprintln(w, out.String())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
