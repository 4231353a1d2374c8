package cmd

import (
	"fmt"
	"iter"

	"github.com/spf13/cobra"
)

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a directory and all missing parents",
	Long: `Create a directory and every missing ancestor.

Existing directories are left alone, so running mkdir twice, or from several
processes at once, is safe.`,
	Args: cobra.ExactArgs(1),
	RunE: runMkdir,
}

var rmdirCmd = &cobra.Command{
	Use:   "rmdir <path>",
	Short: "Remove a directory tree, riding out read-only and locked files",
	Long: `Remove a directory and everything below it.

Read-only attributes are cleared first and each removal is retried
(retry.max_attempts times, retry.delay_ms apart) when another process briefly
holds a file. Removal is not transactional: on failure the tree may be
partially removed, and running rmdir again continues where it stopped.`,
	Args: cobra.ExactArgs(1),
	RunE: runRmdir,
}

var lsCmd = &cobra.Command{
	Use:   "ls <root>",
	Short: "List every file below a directory",
	Long: `List every file below a directory, deepest subdirectories first and the
root's own files last.

Examples:
  # Everything
  shimmer ls /opt/app

  # Only log files at any depth
  shimmer ls /opt/app --match '**.log'`,
	Args: cobra.ExactArgs(1),
	RunE: runLs,
}

var cpCmd = &cobra.Command{
	Use:   "cp <src> <dst>",
	Short: "Copy a file, creating missing parent directories of the destination",
	Args:  cobra.ExactArgs(2),
	RunE:  runCp,
}

var lsMatch string

func init() {
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(rmdirCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(cpCmd)

	lsCmd.Flags().StringVarP(&lsMatch, "match", "m", "", "glob pattern matched against root-relative paths")
}

func runMkdir(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	path, err := rt.fs.CreateRecursive(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runRmdir(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.fs.DeleteDirectoryRecursive(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
	return nil
}

func runLs(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	var files iter.Seq2[string, error]
	if lsMatch != "" {
		files, err = rt.fs.ListFilesMatching(args[0], lsMatch)
		if err != nil {
			return err
		}
	} else {
		files = rt.fs.ListAllFilesRecursively(args[0])
	}

	out := cmd.OutOrStdout()
	for path, err := range files {
		if err != nil {
			return err
		}
		fmt.Fprintln(out, path)
	}
	return nil
}

func runCp(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	return rt.fs.CopyFile(args[0], args[1])
}
