package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/folio/auth"
	"github.com/jmcleod/folio/client"
)

var loginEmail string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in as the site admin",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		p := newPrompter(cmd)
		email := loginEmail
		if email == "" {
			var err error
			if email, err = p.line("Email: "); err != nil {
				return err
			}
		}
		password, err := p.secret("Password: ")
		if err != nil {
			return err
		}
		res, err := a.auth.Login(cmd.Context(), email, password)
		if err != nil {
			return errors.New(client.Message(err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s <%s>\n", res.Admin.Name, res.Admin.Email)
		return nil
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget the stored session",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		if err := a.auth.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	}),
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in admin",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		if err := requireLogin(a); err != nil {
			return err
		}
		profile, err := a.auth.Profile(cmd.Context())
		if err != nil {
			return errors.New(client.Message(err))
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Name:       %s\n", profile.Name)
		fmt.Fprintf(out, "Email:      %s\n", profile.Email)
		fmt.Fprintf(out, "Role:       %s\n", profile.Role)
		if profile.LastLogin != nil {
			fmt.Fprintf(out, "Last login: %s\n", profile.LastLogin.Local().Format(time.RFC1123))
		}
		if exp, ok := a.auth.TokenExpiry(); ok {
			fmt.Fprintf(out, "Session:    expires %s\n", exp.Local().Format(time.RFC1123))
		}
		return nil
	}),
}

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Manage the admin password",
}

var passwordChangeCmd = &cobra.Command{
	Use:   "change",
	Short: "Change the admin password",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		if err := requireLogin(a); err != nil {
			return err
		}
		p := newPrompter(cmd)
		current, err := p.secret("Current password: ")
		if err != nil {
			return err
		}
		next, err := p.secret("New password: ")
		if err != nil {
			return err
		}
		confirm, err := p.secret("Confirm new password: ")
		if err != nil {
			return err
		}
		if next != confirm {
			return errors.New("Passwords do not match")
		}
		if err := a.auth.ChangePassword(cmd.Context(), current, next); err != nil {
			return errors.New(client.Message(err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Password changed successfully")
		return nil
	}),
}

var (
	questionTexts []string
	answerTexts   []string
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Manage the security questions used for password recovery",
}

var questionsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List the configured security questions",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		if err := requireLogin(a); err != nil {
			return err
		}
		qs, err := a.auth.SecurityQuestions(cmd.Context())
		if err != nil {
			return errors.New(client.Message(err))
		}
		if len(qs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No security questions configured")
			return nil
		}
		for i, q := range qs {
			fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, q.Question)
		}
		return nil
	}),
}

var questionsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Replace the three security questions and answers",
	Long: `Replace the security questions. Pass --question and --answer three times
each, or omit them to be prompted.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		if err := requireLogin(a); err != nil {
			return err
		}
		qas, err := collectQuestions(newPrompter(cmd))
		if err != nil {
			return err
		}
		if err := a.auth.UpdateSecurityQuestions(cmd.Context(), qas); err != nil {
			return errors.New(client.Message(err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Security questions updated successfully")
		return nil
	}),
}

func collectQuestions(p *prompter) ([]auth.QuestionAnswer, error) {
	if len(questionTexts) > 0 || len(answerTexts) > 0 {
		if len(questionTexts) != len(answerTexts) {
			return nil, errors.New("each --question needs a matching --answer")
		}
		qas := make([]auth.QuestionAnswer, len(questionTexts))
		for i := range questionTexts {
			qas[i] = auth.QuestionAnswer{Question: questionTexts[i], Answer: answerTexts[i]}
		}
		return qas, nil
	}
	qas := make([]auth.QuestionAnswer, auth.QuestionCount)
	for i := range qas {
		q, err := p.line(fmt.Sprintf("Question %d: ", i+1))
		if err != nil {
			return nil, err
		}
		ans, err := p.secret(fmt.Sprintf("Answer %d: ", i+1))
		if err != nil {
			return nil, err
		}
		qas[i] = auth.QuestionAnswer{Question: q, Answer: ans}
	}
	return qas, nil
}

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Admin email (prompted when empty)")
	questionsSetCmd.Flags().StringArrayVar(&questionTexts, "question", nil, "Security question (repeat 3 times)")
	questionsSetCmd.Flags().StringArrayVar(&answerTexts, "answer", nil, "Answer for the matching --question")

	passwordCmd.AddCommand(passwordChangeCmd)
	questionsCmd.AddCommand(questionsShowCmd, questionsSetCmd)
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, passwordCmd, questionsCmd)
}
