package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/relayd/internal/config"
	"github.com/nextlevelbuilder/relayd/internal/store"
)

// keysCmd manages API keys directly against the configured backend, for
// operators who prefer the shell over the HTTP admin endpoints.
func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
	}
	cmd.AddCommand(keysCreateCmd())
	cmd.AddCommand(keysListCmd())
	cmd.AddCommand(keysRevokeCmd())
	return cmd
}

func keyService(ctx context.Context) (*store.Service, error) {
	godotenv.Load()
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	backend, _ := buildKeyBackend(ctx, cfg.Keys)
	return store.NewService(backend), nil
}

func keysCreateCmd() *cobra.Command {
	var label, owner string
	var days int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue a new API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			svc, err := keyService(ctx)
			if err != nil {
				return err
			}
			rec, err := svc.Create(ctx, label, owner, days)
			if err != nil {
				return err
			}
			fmt.Printf("key:        %s\n", rec.Token)
			fmt.Printf("expires_at: %s\n", rec.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "human-readable key label")
	cmd.Flags().StringVar(&owner, "owner", "", "who the key is issued to")
	cmd.Flags().IntVar(&days, "days", store.DefaultKeyDays, "validity in days")
	return cmd
}

func keysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List issued API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			svc, err := keyService(ctx)
			if err != nil {
				return err
			}
			records, err := svc.List(ctx)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("no keys issued")
				return nil
			}
			now := time.Now().UTC()
			for _, rec := range records {
				state := "active"
				switch {
				case rec.Revoked:
					state = "revoked"
				case rec.Expired(now):
					state = "expired"
				}
				fmt.Printf("%s  %-8s  expires %s  %s\n",
					rec.Token, state, rec.ExpiresAt.Format("2006-01-02"), rec.Label)
			}
			return nil
		},
	}
}

func keysRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <key>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			svc, err := keyService(ctx)
			if err != nil {
				return err
			}
			existed, err := svc.Revoke(ctx, args[0])
			if err != nil {
				return err
			}
			if !existed {
				fmt.Fprintln(os.Stderr, "key not found")
				os.Exit(1)
			}
			fmt.Println("revoked")
			return nil
		},
	}
}
