package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/beanjar/internal/push"
)

func newVAPIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vapid",
		Short: "Generate a VAPID key pair for web push",
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "BEANJAR_VAPID_PUBLIC_KEY=%s\nBEANJAR_VAPID_PRIVATE_KEY=%s\n", pub, priv)
			return nil
		},
	}
}
