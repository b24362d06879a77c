package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newNamespaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "namespace",
		Short: "Manage namespaces, their members, and their roles",
	}
	cmd.AddCommand(
		newNamespaceInfoCmd(),
		newNamespaceCreateCmd(),
		newNamespaceEditCmd(),
		newNamespaceDeleteCmd(),
		newNamespaceUserCmd(),
		newNamespaceRoleCmd(),
	)
	return cmd
}

func newNamespaceInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info NAME",
		Short: "Show a namespace's members and roles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			ns, err := c.GetNamespace(context.Background(), args[0])
			if err != nil {
				return explain(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n%s\n", ns.Namespace.Name, ns.Namespace.Description)
			if ns.Namespace.Homepage != nil {
				fmt.Fprintf(out, "homepage: %s\n", *ns.Namespace.Homepage)
			}
			fmt.Fprintln(out, "\nmembers:")
			for _, m := range ns.Members {
				fmt.Fprintf(out, "  %-20s %s\n", m.Username, m.Role)
			}
			fmt.Fprintln(out, "\nroles:")
			for _, r := range ns.Roles {
				fmt.Fprintf(out, "  %-20s %s\n", r.Name, strings.Join(r.Permissions, ", "))
			}
			return nil
		},
	}
}

func newNamespaceCreateCmd() *cobra.Command {
	var description, homepage string
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a namespace, owned by the caller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			var hp *string
			if homepage != "" {
				hp = &homepage
			}
			if err := c.CreateNamespace(context.Background(), args[0], description, hp); err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "namespace %s created\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "namespace description")
	cmd.Flags().StringVar(&homepage, "homepage", "", "namespace homepage URL")
	return cmd
}

func newNamespaceEditCmd() *cobra.Command {
	var description, homepage string
	cmd := &cobra.Command{
		Use:   "edit NAME",
		Short: "Edit a namespace's description or homepage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			var descPtr *string
			if cmd.Flags().Changed("description") {
				descPtr = &description
			}
			var hpPtr **string
			if cmd.Flags().Changed("homepage") {
				var hp *string
				if homepage != "" {
					hp = &homepage
				}
				hpPtr = &hp
			}
			if err := c.EditNamespace(context.Background(), args[0], descPtr, hpPtr); err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "namespace %s updated\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "namespace description")
	cmd.Flags().StringVar(&homepage, "homepage", "", "namespace homepage URL (empty string clears it)")
	return cmd
}

func newNamespaceDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			if err := c.DeleteNamespace(context.Background(), args[0]); err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "namespace %s deleted\n", args[0])
			return nil
		},
	}
}

func newNamespaceUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage a namespace's members",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add NAMESPACE USERNAME ROLE",
			Short: "Add a member to a namespace with a role",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := newClient(cmd)
				if err != nil {
					return err
				}
				if err := c.AddNamespaceMember(context.Background(), args[0], args[1], args[2]); err != nil {
					return explain(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s added to %s as %s\n", args[1], args[0], args[2])
				return nil
			},
		},
		&cobra.Command{
			Use:   "edit NAMESPACE USERNAME ROLE",
			Short: "Change a member's role",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := newClient(cmd)
				if err != nil {
					return err
				}
				if err := c.EditNamespaceMember(context.Background(), args[0], args[1], args[2]); err != nil {
					return explain(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s on %s is now %s\n", args[1], args[0], args[2])
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete NAMESPACE USERNAME",
			Short: "Remove a member from a namespace",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := newClient(cmd)
				if err != nil {
					return err
				}
				if err := c.RemoveNamespaceMember(context.Background(), args[0], args[1]); err != nil {
					return explain(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s removed from %s\n", args[1], args[0])
				return nil
			},
		},
	)
	return cmd
}

func newNamespaceRoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage a namespace's role definitions",
	}
	var permissions []string
	createCmd := &cobra.Command{
		Use:   "create NAMESPACE NAME",
		Short: "Define a new role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			if err := c.CreateNamespaceRole(context.Background(), args[0], args[1], permissions); err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "role %s created on %s\n", args[1], args[0])
			return nil
		},
	}
	createCmd.Flags().StringSliceVar(&permissions, "permission", nil, "permission code (repeatable)")

	var editPermissions []string
	editCmd := &cobra.Command{
		Use:   "edit NAMESPACE NAME",
		Short: "Replace a role's permission set",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			if err := c.EditNamespaceRole(context.Background(), args[0], args[1], editPermissions); err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "role %s on %s updated\n", args[1], args[0])
			return nil
		},
	}
	editCmd.Flags().StringSliceVar(&editPermissions, "permission", nil, "permission code (repeatable)")

	deleteCmd := &cobra.Command{
		Use:   "delete NAMESPACE NAME",
		Short: "Delete a role (must have no members)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			if err := c.DeleteNamespaceRole(context.Background(), args[0], args[1]); err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "role %s on %s deleted\n", args[1], args[0])
			return nil
		},
	}

	cmd.AddCommand(createCmd, editCmd, deleteCmd)
	return cmd
}
