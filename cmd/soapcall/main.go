// Command soapcall posts a SOAP envelope through the retrying transport and
// prints the classified response.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cheyinl/soaptransport/config"
	"github.com/cheyinl/soaptransport/soap"
	"github.com/cheyinl/soaptransport/transport"
)

var version = "dev" // Will be set during build

type callOptions struct {
	ConfigFile  string
	URL         string
	Action      string
	BodyFile    string
	MaxAttempts int
}

func main() {
	if err := newRootCommand(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(version string) *cobra.Command {
	opts := &callOptions{}

	cmd := &cobra.Command{
		Use:   "soapcall",
		Short: "Send a SOAP envelope with retries",
		Long: `Posts a serialized SOAP envelope to a service and prints the outcome.

Timeouts, retries, TLS and credentials come from the configuration file and
SOAPX_* environment variables. The exit code is non-zero unless the call
succeeded.`,
		Example: `  # Send envelope.xml with settings from soapx.yaml
  soapcall -c soapx.yaml -f envelope.xml

  # Read the envelope from stdin and retry up to 3 times
  cat envelope.xml | soapcall --url https://svc/soap --action urn:Ping --max-attempts 3`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCall(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "", "YAML configuration file")
	cmd.Flags().StringVarP(&opts.URL, "url", "u", "", "Service URL (overrides service.url)")
	cmd.Flags().StringVarP(&opts.Action, "action", "a", "", "SOAP action (overrides service.action)")
	cmd.Flags().StringVarP(&opts.BodyFile, "body-file", "f", "-", "Envelope file, - for stdin")
	cmd.Flags().IntVar(&opts.MaxAttempts, "max-attempts", 0, "Attempt budget (overrides transport.maxattempts)")

	return cmd
}

func runCall(cmd *cobra.Command, opts *callOptions) error {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return err
	}

	url := cfg.Service.URL
	if opts.URL != "" {
		url = opts.URL
	}
	if url == "" {
		return fmt.Errorf("no service url: set --url or service.url")
	}
	action := cfg.Service.Action
	if opts.Action != "" {
		action = opts.Action
	}

	envelope, err := readEnvelope(cmd.InOrStdin(), opts.BodyFile)
	if err != nil {
		return err
	}

	tc, err := cfg.TransportConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("max-attempts") {
		if err := tc.SetMaxAttempts(opts.MaxAttempts); err != nil {
			return err
		}
	}

	log := cfg.Logger(cmd.ErrOrStderr())
	client := soap.NewClient(url,
		transport.NewRetrier(tc, transport.WithLogger(log)),
		soap.WithLogger(log),
	)

	resp := client.CallRaw(cmd.Context(), action, envelope)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "status: %s\n", resp.Status)
	fmt.Fprintf(out, "attempts: %d\n", resp.Attempts)
	if resp.IsSuccess() {
		fmt.Fprintln(out)
		fmt.Fprintln(out, resp.Payload)
		return nil
	}
	fmt.Fprintf(out, "error: %s\n", resp.Error)
	return fmt.Errorf("call %s", resp.Status)
}

func readEnvelope(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read envelope from stdin: %w", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read envelope: %w", err)
	}
	return b, nil
}
