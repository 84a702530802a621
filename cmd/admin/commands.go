package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sakif/nowastemate/internal/model"
	"github.com/sakif/nowastemate/internal/repository"
)

type opener func() (*app, error)

func newTable(cmd *cobra.Command) *tabwriter.Writer {
	return tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
}

func profilesCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List and approve member profiles",
	}

	var (
		role    string
		pending bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := repository.ProfileFilter{Role: model.Role(role), PendingOnly: pending}
			if role != "" && !f.Role.Valid() {
				return fmt.Errorf("unknown role %q (want donor or ngo)", role)
			}

			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			rows, err := a.accounts.Profiles(cmd.Context(), f)
			if err != nil {
				return err
			}

			tw := newTable(cmd)
			fmt.Fprintln(tw, "USERNAME\tEMAIL\tROLE\tAPPROVED\tRATING\tJOINED")
			for _, p := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%.1f\t%s\n",
					p.Username, p.Email, p.Role.Label(), p.IsApproved, p.AverageRating,
					p.CreatedAt.Format("2006-01-02"))
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&role, "role", "", "only this role (donor or ngo)")
	list.Flags().BoolVar(&pending, "pending", false, "only profiles awaiting approval")

	approve := &cobra.Command{
		Use:   "approve <username>...",
		Short: "Approve profiles and email their owners",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			failed := 0
			for _, res := range a.accounts.Approve(cmd.Context(), args...) {
				switch {
				case res.Err != nil:
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", res.Username, res.Err)
				case res.Approved:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: approved\n", res.Username)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: already approved\n", res.Username)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d approvals failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.AddCommand(list, approve)
	return cmd
}

func donationsCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "donations",
		Short: "Inspect donations",
	}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List donations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := model.DonationStatus(status)
			switch st {
			case "", model.StatusAvailable, model.StatusClaimed, model.StatusCompleted:
			default:
				return fmt.Errorf("unknown status %q (want available, claimed or completed)", status)
			}

			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			list, err := a.donations.List(cmd.Context(), st)
			if err != nil {
				return err
			}

			tw := newTable(cmd)
			fmt.Fprintln(tw, "ID\tFOOD\tQUANTITY\tDONOR\tSTATUS\tCLAIMED BY\tPICKUP BY")
			for _, d := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					d.ID, d.FoodItem, d.Quantity, d.DonorName, d.Status, d.ClaimedByName,
					d.PickupBy.UTC().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&status, "status", "", "only this status")

	cmd.AddCommand(list)
	return cmd
}

func contactCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Read and delete contact messages",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List contact messages, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			msgs, err := a.contact.List(cmd.Context(), repository.ListOptions{Limit: limit})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, m := range msgs {
				fmt.Fprintf(out, "[%s] %s  %s <%s>\n", m.ID, m.CreatedAt.UTC().Format("2006-01-02 15:04"), m.Name, m.Email)
				fmt.Fprintf(out, "Subject: %s\n%s\n\n", m.Subject, m.Message)
			}
			if len(msgs) == 0 {
				fmt.Fprintln(out, "No messages.")
			}
			return nil
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 50, "maximum messages")

	del := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete contact messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			var errs []error
			for _, id := range args {
				if err := a.contact.Delete(cmd.Context(), id); err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: deleted\n", id)
			}
			return errors.Join(errs...)
		},
	}

	cmd.AddCommand(list, del)
	return cmd
}

func accountsCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage administrator accounts",
	}

	var email, password string
	create := &cobra.Command{
		Use:   "create-admin <username>",
		Short: "Create an administrator account",
		Long: `Create an administrator account. Administrators can log in but have
no profile and no dashboard. The password is read from --password or the
ADMIN_PASSWORD environment variable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("ADMIN_PASSWORD")
			}
			if strings.TrimSpace(email) == "" || password == "" {
				return errors.New("--email and a password (--password or ADMIN_PASSWORD) are required")
			}

			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			account, err := a.accounts.CreateAdmin(cmd.Context(), args[0], email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", account.Username, account.ID)
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "email address")
	create.Flags().StringVar(&password, "password", "", "password (prefer ADMIN_PASSWORD)")

	cmd.AddCommand(create)
	return cmd
}
