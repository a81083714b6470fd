package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jmcleod/folio/admin"
)

var (
	sectionData string
	certTitle   string
	certIssuer  string
	certDate    string
)

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Manage site content",
}

var contentShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the site content document",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		c, err := a.admin.Content.Get(cmd.Context())
		if err != nil {
			return apiError(err)
		}
		return printJSON(cmd.OutOrStdout(), c)
	}),
}

var contentSectionCmd = &cobra.Command{
	Use:       "section <hero|about|contact|social>",
	Short:     "Replace one content section with JSON from --data or stdin",
	Args:      cobra.ExactArgs(1),
	ValidArgs: admin.Sections,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		if err := requireLogin(a); err != nil {
			return err
		}
		raw := []byte(sectionData)
		if sectionData == "" || sectionData == "-" {
			var err error
			if raw, err = readAllInput(cmd); err != nil {
				return err
			}
		}
		var data any
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("section data is not valid JSON: %w", err)
		}
		c, err := a.admin.Content.UpdateSection(cmd.Context(), args[0], data)
		if err != nil {
			return apiError(err)
		}
		return printJSON(cmd.OutOrStdout(), c)
	}),
}

var contentResumeCmd = &cobra.Command{
	Use:   "resume <file>",
	Short: "Upload the résumé file",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		if err := requireLogin(a); err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		up, err := a.admin.Content.UploadResume(cmd.Context(), filepath.Base(args[0]), f)
		if err != nil {
			return apiError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded résumé: %s\n", up.URL)
		return nil
	}),
}

var contentCertificateCmd = &cobra.Command{
	Use:   "certificate",
	Short: "Add or remove certificates",
}

var certificateAddCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Upload a certificate",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		if err := requireLogin(a); err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		cert := admin.Certificate{Title: certTitle, Issuer: certIssuer, Date: certDate}
		c, err := a.admin.Content.AddCertificate(cmd.Context(), cert, filepath.Base(args[0]), f)
		if err != nil {
			return apiError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Certificate added (%d total)\n", len(c.Certificates))
		return nil
	}),
}

var certificateDeleteCmd = &cobra.Command{
	Use:   "delete <index>",
	Short: "Remove the certificate at index (0-based, as listed by content show)",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		if err := requireLogin(a); err != nil {
			return err
		}
		i, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("index must be a number: %w", err)
		}
		c, err := a.admin.Content.DeleteCertificate(cmd.Context(), i)
		if err != nil {
			return apiError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Certificate removed (%d left)\n", len(c.Certificates))
		return nil
	}),
}

func readAllInput(cmd *cobra.Command) ([]byte, error) {
	return io.ReadAll(cmd.InOrStdin())
}

func init() {
	contentSectionCmd.Flags().StringVar(&sectionData, "data", "", `Section JSON, e.g. '{"title":"Hi"}' (default: read stdin)`)
	certificateAddCmd.Flags().StringVar(&certTitle, "title", "", "Certificate title")
	certificateAddCmd.Flags().StringVar(&certIssuer, "issuer", "", "Issuing organisation")
	certificateAddCmd.Flags().StringVar(&certDate, "date", "", "Issue date")

	contentCertificateCmd.AddCommand(certificateAddCmd, certificateDeleteCmd)
	contentCmd.AddCommand(contentShowCmd, contentSectionCmd, contentResumeCmd, contentCertificateCmd)
	rootCmd.AddCommand(contentCmd)
}
