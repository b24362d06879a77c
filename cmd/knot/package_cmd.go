package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slowlime/knotd/internal/client"
)

func newListCmd() *cobra.Command {
	var namespace, label string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List packages, optionally filtered by namespace or label",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			pkgs, err := c.ListPackages(context.Background(), namespace, label)
			if err != nil {
				return explain(err)
			}
			for _, p := range pkgs {
				ns := "-"
				if p.Namespace != nil {
					ns = *p.Namespace
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-30s %-15s %6d  %s\n", p.Name, ns, p.Downloads, p.Summary)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "restrict to one namespace")
	cmd.Flags().StringVar(&label, "label", "", "restrict to one label")
	return cmd
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info PACKAGE",
		Short: "Show a package's metadata, versions, and tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			pkg, err := c.GetPackage(context.Background(), args[0])
			if err != nil {
				return explain(err)
			}
			out := cmd.OutOrStdout()
			ns := "-"
			if pkg.Namespace != nil {
				ns = *pkg.Namespace
			}
			fmt.Fprintf(out, "%s (%s)\n%s\n\n", pkg.Name, ns, pkg.Summary)
			fmt.Fprintf(out, "labels:  %s\n", strings.Join(pkg.Labels, ", "))
			fmt.Fprintf(out, "owners:  %s\n", strings.Join(pkg.Owners, ", "))
			fmt.Fprintf(out, "downloads: %d\n\n", pkg.Downloads)
			fmt.Fprintln(out, "versions:")
			for _, v := range pkg.Versions {
				fmt.Fprintf(out, "  %-12s %s\n", v.Version, v.Description)
			}
			if len(pkg.Tags) > 0 {
				fmt.Fprintln(out, "\ntags:")
				for _, t := range pkg.Tags {
					fmt.Fprintf(out, "  %-12s -> %s\n", t.Name, t.Version)
				}
			}
			return nil
		},
	}
}

func newDownloadCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download PACKAGE[@VERSION]",
		Short: "Fetch a version's tarball to the local filesystem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			name, version, _ := strings.Cut(args[0], "@")
			pkg, err := c.GetPackage(context.Background(), name)
			if err != nil {
				return explain(err)
			}
			v, err := resolveVersion(pkg, version)
			if err != nil {
				return err
			}
			if v.TarballURL == nil {
				return fmt.Errorf("%s@%s has no tarball URL on record", name, v.Version)
			}
			dest := out
			if dest == "" {
				dest = fmt.Sprintf("%s-%s.tar.gz", filepath.Base(name), v.Version)
			}
			if err := fetchTarball(*v.TarballURL, dest); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "downloaded %s@%s to %s\n", name, v.Version, dest)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "output", "", "destination file (defaults to PACKAGE-VERSION.tar.gz)")
	return cmd
}

func resolveVersion(pkg *client.Package, version string) (*client.Version, error) {
	if version == "" {
		if len(pkg.Versions) == 0 {
			return nil, fmt.Errorf("%s has no published versions", pkg.Name)
		}
		return &pkg.Versions[len(pkg.Versions)-1], nil
	}
	for i := range pkg.Versions {
		if pkg.Versions[i].Version == version {
			return &pkg.Versions[i], nil
		}
	}
	for _, t := range pkg.Tags {
		if t.Name == version {
			return resolveVersion(pkg, t.Version)
		}
	}
	return nil, fmt.Errorf("%s has no version or tag %q", pkg.Name, version)
}

func fetchTarball(url, dest string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("fetch tarball: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch tarball: unexpected status %d", resp.StatusCode)
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

func newPublishCmd() *cobra.Command {
	var manifestPath string
	var pkgName string
	var force bool
	cmd := &cobra.Command{
		Use:   "publish PACKAGE",
		Short: "Publish a version of a package from a knot-manifest.toml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgName = args[0]
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			m, err := loadManifest(manifestPath)
			if err != nil {
				return err
			}
			v := m.toClientVersion()

			err = c.PublishVersion(context.Background(), pkgName, v)
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "published %s@%s\n", pkgName, v.Version)
				return nil
			}
			apiErr, ok := err.(*client.APIError)
			if !ok || apiErr.What != "Version" {
				return explain(err)
			}
			// The version already exists: spec.md's publish flow treats this
			// as an edit, subject to confirmation unless --force was passed.
			if !force {
				fmt.Fprintf(cmd.OutOrStdout(), "%s@%s already exists; replace it? [y/N] ", pkgName, v.Version)
				var answer string
				fmt.Fscanln(cmd.InOrStdin(), &answer)
				if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
					return fmt.Errorf("publish aborted")
				}
			}
			if err := c.ReplaceVersion(context.Background(), pkgName, v); err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replaced %s@%s\n", pkgName, v.Version)
			return nil
		},
	}
	cmd.Flags().StringVar(&manifestPath, "manifest", "knot-manifest.toml", "path to the manifest describing the version")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing version without prompting")
	return cmd
}

func newUnpublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpublish PACKAGE@VERSION",
		Short: "Remove one published version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, version, ok := strings.Cut(args[0], "@")
			if !ok {
				return fmt.Errorf("expected PACKAGE@VERSION, got %q", args[0])
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			if err := c.DeleteVersion(context.Background(), name, version); err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unpublished %s@%s\n", name, version)
			return nil
		},
	}
}
