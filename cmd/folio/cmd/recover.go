package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmcleod/folio/recovery"
)

// Typed at any prompt of the recover wizard.
const (
	cmdBack   = ":back"
	cmdCancel = ":cancel"
)

var recoverEmail string

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Reset a forgotten password with security questions",
	Long: `Walks through password recovery: enter the admin email, answer the
security questions, then choose a new password. Type :back at a prompt to
return to the previous step or :cancel to give up.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		out := cmd.OutOrStdout()
		w := recovery.NewWizard(a.auth,
			recovery.WithLogger(logger),
			recovery.WithOnComplete(func(msg string) { fmt.Fprintln(out, msg) }),
		)
		w.Start()
		return runRecovery(cmd, w, newPrompter(cmd))
	}),
}

func runRecovery(cmd *cobra.Command, w *recovery.Wizard, p *prompter) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	email := recoverEmail

	for w.State().Active {
		st := w.State()
		var err error
		switch st.Step {
		case recovery.StepEmail:
			if email == "" {
				if email, err = p.line("Email: "); err != nil {
					break
				}
			}
			if email == cmdCancel {
				w.Cancel()
				return errors.New("recovery cancelled")
			}
			err = w.SubmitEmail(ctx, email)
			email = ""

		case recovery.StepAnswers:
			var answers [recovery.AnswerSlots]string
			prompts := st.Prompts()
			for i := range prompts {
				if answers[i], err = p.line(fmt.Sprintf("%s ", prompts[i].Question)); err != nil {
					break
				}
				if answers[i] == cmdBack || answers[i] == cmdCancel {
					break
				}
			}
			if err != nil {
				break
			}
			if handled, herr := navigate(w, answers[:]); handled {
				if herr != nil {
					return herr
				}
				continue
			}
			err = w.SubmitAnswers(ctx, answers)

		case recovery.StepPassword:
			var next, confirm string
			if next, err = p.secret("New password: "); err != nil {
				break
			}
			if handled, herr := navigate(w, []string{next}); handled {
				if herr != nil {
					return herr
				}
				continue
			}
			if confirm, err = p.secret("Confirm new password: "); err != nil {
				break
			}
			err = w.SubmitNewPassword(ctx, next, confirm)
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			w.Cancel()
			return errors.New("recovery cancelled: input ended")
		case w.State().Message != "":
			fmt.Fprintf(out, "Error: %s\n", w.State().Message)
		default:
			return err
		}
	}
	return nil
}

// navigate applies :back or :cancel when one of inputs is exactly that.
func navigate(w *recovery.Wizard, inputs []string) (bool, error) {
	for _, in := range inputs {
		switch in {
		case cmdBack:
			if err := w.Back(); err != nil {
				logger.Debug("back", slog.String("error", err.Error()))
			}
			return true, nil
		case cmdCancel:
			w.Cancel()
			return true, errors.New("recovery cancelled")
		}
	}
	return false, nil
}

func init() {
	recoverCmd.Flags().StringVarP(&recoverEmail, "email", "e", "", "Admin email (prompted when empty)")
	rootCmd.AddCommand(recoverCmd)
}
