package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slowlime/knotd/internal/client"
)

func newPkgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pkg",
		Short: "Create, edit, or delete a package's metadata",
	}
	cmd.AddCommand(newPkgCreateCmd(), newPkgEditCmd(), newPkgDeleteCmd())
	return cmd
}

func newPkgCreateCmd() *cobra.Command {
	var summary, namespace string
	var labels, owners []string
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Register a new package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			req := client.PackageCreateRequest{Name: args[0], Summary: summary, Labels: labels, Owners: owners}
			if namespace != "" {
				req.Namespace = &namespace
			}
			if err := c.CreatePackage(context.Background(), req); err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "package %s created\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&summary, "summary", "", "one-line summary")
	cmd.Flags().StringVar(&namespace, "namespace", "", "owning namespace")
	cmd.Flags().StringSliceVar(&labels, "label", nil, "label (repeatable)")
	cmd.Flags().StringSliceVar(&owners, "owner", nil, "owner username (repeatable)")
	return cmd
}

func newPkgEditCmd() *cobra.Command {
	var summary, namespace string
	var labels, owners []string
	cmd := &cobra.Command{
		Use:   "edit NAME",
		Short: "Edit a package's metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			var summaryPtr *string
			if cmd.Flags().Changed("summary") {
				summaryPtr = &summary
			}
			var namespacePtr **string
			if cmd.Flags().Changed("namespace") {
				var n *string
				if namespace != "" {
					n = &namespace
				}
				namespacePtr = &n
			}
			var labelsPtr, ownersPtr *[]string
			if cmd.Flags().Changed("label") {
				labelsPtr = &labels
			}
			if cmd.Flags().Changed("owner") {
				ownersPtr = &owners
			}
			if err := c.EditPackage(context.Background(), args[0], summaryPtr, namespacePtr, labelsPtr, ownersPtr); err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "package %s updated\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&summary, "summary", "", "one-line summary")
	cmd.Flags().StringVar(&namespace, "namespace", "", "owning namespace (empty string clears it)")
	cmd.Flags().StringSliceVar(&labels, "label", nil, "replace labels (repeatable)")
	cmd.Flags().StringSliceVar(&owners, "owner", nil, "replace owners (repeatable)")
	return cmd
}

func newPkgDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a package and all of its versions and tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			if err := c.DeletePackage(context.Background(), args[0]); err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "package %s deleted\n", args[0])
			return nil
		},
	}
}

func newTagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Create, edit, or delete a package's symbolic tags",
	}
	cmd.AddCommand(newTagCreateCmd(), newTagEditCmd(), newTagDeleteCmd())
	return cmd
}

func newTagCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create PACKAGE NAME VERSION",
		Short: "Point a new tag at a version",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			if err := c.CreateTag(context.Background(), args[0], args[1], args[2]); err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tag %s -> %s created on %s\n", args[1], args[2], args[0])
			return nil
		},
	}
	return cmd
}

func newTagEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit PACKAGE NAME VERSION",
		Short: "Move an existing tag to a different version",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			if err := c.EditTag(context.Background(), args[0], args[1], args[2]); err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tag %s -> %s on %s\n", args[1], args[2], args[0])
			return nil
		},
	}
	return cmd
}

func newTagDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete PACKAGE NAME",
		Short: "Delete a tag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			if err := c.DeleteTag(context.Background(), args[0], args[1]); err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tag %s on %s deleted\n", args[1], args[0])
			return nil
		},
	}
}
