package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"checkin/internal/checkin"
	"checkin/internal/checkin/handler"
	"checkin/internal/proof/issuer"
	"checkin/internal/proof/models"
	"checkin/pkg/requestcontext"
)

const (
	issuerKeyEnv  = "CHECKIN_ISSUER_KEY"
	issuerNameEnv = "CHECKIN_ISSUER_NAME"
)

// errRejected is returned by verify when the proof is not accepted. The
// result has already been printed.
var errRejected = errors.New("proof rejected")

type commonFlags struct {
	ttl        time.Duration
	issuerKey  string
	issuerName string
}

func (f *commonFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.ttl, "ttl", models.DefaultTTL, "proof validity window")
	cmd.Flags().StringVar(&f.issuerKey, "issuer-key", "", "HS256 signing key (env "+issuerKeyEnv+"); empty means unsigned artifacts")
	cmd.Flags().StringVar(&f.issuerName, "issuer-name", "checkin", "issuer name (env "+issuerNameEnv+")")
}

func (f *commonFlags) service(cmd *cobra.Command) (*checkin.Service, error) {
	key := f.issuerKey
	if !cmd.Flags().Changed("issuer-key") {
		key = os.Getenv(issuerKeyEnv)
	}
	name := f.issuerName
	if v := os.Getenv(issuerNameEnv); v != "" && !cmd.Flags().Changed("issuer-name") {
		name = v
	}

	opts := []checkin.Option{checkin.WithTTL(f.ttl)}
	if key != "" {
		signer, err := issuer.New(key, name)
		if err != nil {
			return nil, err
		}
		opts = append(opts, checkin.WithEnvelope(signer))
	}
	return checkin.New(opts...), nil
}

func newRootCmd(in io.Reader, out io.Writer, clock func() time.Time) *cobra.Command {
	root := &cobra.Command{
		Use:           "checkinctl",
		Short:         "Generate and verify privacy-preserving check-in proofs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.AddCommand(newGenerateCmd(clock), newVerifyCmd(clock))
	return root
}

func newGenerateCmd(clock func() time.Time) *cobra.Command {
	var (
		flags  commonFlags
		record models.AttributeRecord
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a proof artifact from holder attributes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := flags.service(cmd)
			if err != nil {
				return err
			}
			ctx := requestcontext.WithTime(context.Background(), clock())
			result, err := svc.Issue(ctx, record)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), handler.IssueFromResult(result))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), result.Artifact)
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&record.Name, "name", "", "holder name")
	cmd.Flags().IntVar(&record.Age, "age", 0, "holder age in years")
	cmd.Flags().StringVar(&record.IDFragment, "id-fragment", "", "ID document fragment")
	cmd.Flags().BoolVar(&record.HasPaymentMethod, "payment", false, "holder has a payment method")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print artifact with issue and expiry times as JSON")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("age")
	_ = cmd.MarkFlagRequired("id-fragment")
	return cmd
}

func newVerifyCmd(clock func() time.Time) *cobra.Command {
	var flags commonFlags
	cmd := &cobra.Command{
		Use:   "verify [artifact|-]",
		Short: "Verify a proof artifact and print the result as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			artifact, err := readArtifact(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			svc, err := flags.service(cmd)
			if err != nil {
				return err
			}
			ctx := requestcontext.WithTime(context.Background(), clock())
			result, checkErr := svc.Check(ctx, artifact)
			if err := writeJSON(cmd.OutOrStdout(), handler.VerifyFromResult(result)); err != nil {
				return err
			}
			if checkErr != nil {
				return checkErr
			}
			if !result.Accepted {
				return errRejected
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func readArtifact(in io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	raw, err := io.ReadAll(io.LimitReader(in, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
